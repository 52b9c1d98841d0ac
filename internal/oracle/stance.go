package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "stancegraph/pkg/errors"
)

const stanceSystemPrompt = `You are a stance classification model. Given a text and a target political entity, classify the author's stance toward that entity.

Follow these rules STRICTLY:
1. Respond ONLY with a valid JSON object, no markdown, no commentary.
2. The JSON object must have exactly two keys: "stance" and "confidence".
3. "stance" must be one of: "FAVORABLE", "OPPOSED", "NEUTRAL".
4. "confidence" must be a number between 0.0 and 1.0.`

// ClassifyStance runs the stance oracle on a (text, entity) pair. The result
// always carries a confidence in [0,1]; malformed shapes are rejected here so
// nothing downstream ever sees a defaulted confidence.
func (c *Client) ClassifyStance(ctx context.Context, text, entity string) (StanceResult, error) {
	userMsg := fmt.Sprintf("Target entity: %s\n\nText: %s", entity, text)

	raw, err := c.chat(ctx, "stance", stanceSystemPrompt, userMsg)
	if err != nil {
		return StanceResult{}, err
	}
	return parseStance(raw)
}

func parseStance(raw string) (StanceResult, error) {
	var payload struct {
		Stance     string   `json:"stance"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return StanceResult{}, apperrors.NewOracleMalformedOutput("stance", "unparseable JSON: "+err.Error())
	}
	return validateStance(payload.Stance, payload.Confidence)
}
