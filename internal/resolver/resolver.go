package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"stancegraph/internal/graph"
	apperrors "stancegraph/pkg/errors"
	"stancegraph/pkg/logger"
)

// Store is the slice of the graph store the resolver needs
type Store interface {
	ListEntitiesWithDegree(ctx context.Context) ([]graph.EntityDegree, error)
	MergeEntityCluster(ctx context.Context, canonicalID string, loserIDs []string) error
}

// Overrides holds explicit do-not-merge pairs, keyed by normalized entity name
type Overrides struct {
	pairs map[[2]string]bool
}

// LoadOverrides reads do-not-merge pairs from a JSON file of the form
// {"do_not_merge": [["Name A", "Name B"], ...]}. An empty path yields empty
// overrides.
func LoadOverrides(path string) (*Overrides, error) {
	o := &Overrides{pairs: make(map[[2]string]bool)}
	if path == "" {
		return o, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read merge overrides: %w", err)
	}
	var payload struct {
		DoNotMerge [][2]string `json:"do_not_merge"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse merge overrides: %w", err)
	}
	for _, pair := range payload.DoNotMerge {
		o.Add(pair[0], pair[1])
	}
	return o, nil
}

// Add registers a do-not-merge pair
func (o *Overrides) Add(nameA, nameB string) {
	if o.pairs == nil {
		o.pairs = make(map[[2]string]bool)
	}
	a, b := normalizeName(nameA), normalizeName(nameB)
	if b < a {
		a, b = b, a
	}
	o.pairs[[2]string{a, b}] = true
}

// Blocks reports whether merging the two names is explicitly forbidden
func (o *Overrides) Blocks(nameA, nameB string) bool {
	if o == nil || o.pairs == nil {
		return false
	}
	a, b := normalizeName(nameA), normalizeName(nameB)
	if b < a {
		a, b = b, a
	}
	return o.pairs[[2]string{a, b}]
}

// MergePlan is one cluster of near-duplicate entities to collapse
type MergePlan struct {
	CanonicalID   string
	CanonicalName string
	LoserIDs      []string
	LoserNames    []string
}

// Report summarizes one resolution run
type Report struct {
	Clusters  int
	Merged    int
	Conflicts []*apperrors.ErrMergeConflict
}

// Resolver deduplicates entity nodes that denote the same real-world referent
type Resolver struct {
	store     Store
	threshold float64
	overrides *Overrides
	logger    *zap.Logger
}

// NewResolver creates an entity resolver
func NewResolver(store Store, similarityThreshold float64, overrides *Overrides) *Resolver {
	if overrides == nil {
		overrides = &Overrides{}
	}
	return &Resolver{
		store:     store,
		threshold: similarityThreshold,
		overrides: overrides,
		logger:    logger.Named("resolver"),
	}
}

// Resolve finds clusters of near-duplicate entities and merges each into its
// canonical node. Running it again on an already-resolved graph finds nothing
// to do. Merge conflicts are reported, never fatal.
func (r *Resolver) Resolve(ctx context.Context) (*Report, error) {
	entities, err := r.store.ListEntitiesWithDegree(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	plans, conflicts := Plan(entities, r.threshold, r.overrides)
	report := &Report{Clusters: len(plans), Conflicts: conflicts}

	for _, c := range conflicts {
		r.logger.Warn("Merge blocked by override",
			zap.String("entity_a", c.EntityA),
			zap.String("entity_b", c.EntityB),
		)
	}

	for _, plan := range plans {
		if err := r.store.MergeEntityCluster(ctx, plan.CanonicalID, plan.LoserIDs); err != nil {
			return report, fmt.Errorf("failed to merge cluster %q: %w", plan.CanonicalName, err)
		}
		report.Merged += len(plan.LoserIDs)
		r.logger.Info("Merged entity cluster",
			zap.String("canonical", plan.CanonicalName),
			zap.Strings("merged", plan.LoserNames),
		)
	}

	r.logger.Info("Entity resolution completed",
		zap.Int("entities", len(entities)),
		zap.Int("clusters", report.Clusters),
		zap.Int("merged", report.Merged),
		zap.Int("conflicts", len(report.Conflicts)),
	)
	return report, nil
}

// Plan computes merge clusters without touching the store. Within a cluster
// the node with the most incoming edges is canonical; ties go to the
// lexicographically smallest id. Pairs hitting a do-not-merge override are
// skipped and reported.
func Plan(entities []graph.EntityDegree, threshold float64, overrides *Overrides) ([]MergePlan, []*apperrors.ErrMergeConflict) {
	n := len(entities)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	var conflicts []*apperrors.ErrMergeConflict
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if NameSimilarity(entities[i].Name, entities[j].Name) < threshold {
				continue
			}
			if overrides.Blocks(entities[i].Name, entities[j].Name) {
				conflicts = append(conflicts, apperrors.NewMergeConflict(entities[i].Name, entities[j].Name))
				continue
			}
			union(i, j)
		}
	}

	clusters := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		clusters[root] = append(clusters[root], i)
	}

	var plans []MergePlan
	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}
		// Canonical: max degree, then smallest id
		sort.Slice(members, func(a, b int) bool {
			ea, eb := entities[members[a]], entities[members[b]]
			if ea.Degree != eb.Degree {
				return ea.Degree > eb.Degree
			}
			return ea.ID < eb.ID
		})
		canonical := entities[members[0]]
		plan := MergePlan{
			CanonicalID:   canonical.ID,
			CanonicalName: canonical.Name,
		}
		for _, idx := range members[1:] {
			plan.LoserIDs = append(plan.LoserIDs, entities[idx].ID)
			plan.LoserNames = append(plan.LoserNames, entities[idx].Name)
		}
		plans = append(plans, plan)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CanonicalID < plans[j].CanonicalID })
	return plans, conflicts
}

var whitespaceRe = regexp.MustCompile(`\s+`)
var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "'s", "")
	name = punctRe.ReplaceAllString(name, "")
	return whitespaceRe.ReplaceAllString(name, " ")
}

// NameSimilarity scores two entity names in [0,1]. Token-set containment
// scores 1.0 so "Trump" and "Donald Trump" merge while "Democratic Party"
// and "Republican Party" stay apart.
func NameSimilarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	tokensA := strings.Fields(na)
	tokensB := strings.Fields(nb)
	setA := make(map[string]bool, len(tokensA))
	for _, tok := range tokensA {
		setA[tok] = true
	}
	matches := 0
	setB := make(map[string]bool, len(tokensB))
	for _, tok := range tokensB {
		if !setB[tok] {
			setB[tok] = true
			if setA[tok] {
				matches++
			}
		}
	}

	minSize := len(setA)
	if len(setB) < minSize {
		minSize = len(setB)
	}
	tokenScore := 0.0
	if minSize > 0 {
		tokenScore = float64(matches) / float64(minSize)
	}

	// Character containment catches run-together variants the tokenizer misses
	charScore := 0.0
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		shorter, longer := len(na), len(nb)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		charScore = float64(shorter) / float64(longer)
	}

	if charScore > tokenScore {
		return charScore
	}
	return tokenScore
}
