package oracle

import (
	"strings"

	apperrors "stancegraph/pkg/errors"

	"stancegraph/internal/graph"
)

// EntityMention is one named entity surfaced by the NER oracle
type EntityMention struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// StanceResult is the validated output of the stance oracle. Confidence is
// mandatory; a result without it never leaves this package.
type StanceResult struct {
	Stance     string  `json:"stance"`
	Confidence float64 `json:"confidence"`
}

// normalizeStanceLabel maps oracle output onto the canonical stance labels.
// Some models answer AGAINST for an opposed stance; both spellings are accepted.
func normalizeStanceLabel(label string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case graph.StanceFavorable:
		return graph.StanceFavorable, true
	case graph.StanceOpposed, "AGAINST":
		return graph.StanceOpposed, true
	case graph.StanceNeutral:
		return graph.StanceNeutral, true
	}
	return "", false
}

// validateStance enforces the stance oracle's output contract
func validateStance(label string, confidence *float64) (StanceResult, error) {
	normalized, ok := normalizeStanceLabel(label)
	if !ok {
		return StanceResult{}, apperrors.NewOracleMalformedOutput("stance", "unknown stance label: "+label)
	}
	if confidence == nil {
		return StanceResult{}, apperrors.NewOracleMalformedOutput("stance", "missing confidence")
	}
	if *confidence < 0 || *confidence > 1 {
		return StanceResult{}, apperrors.NewOracleMalformedOutput("stance", "confidence out of range")
	}
	return StanceResult{Stance: normalized, Confidence: *confidence}, nil
}
