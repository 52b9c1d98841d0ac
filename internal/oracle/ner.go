package oracle

import (
	"context"
	"encoding/json"
	"strings"

	apperrors "stancegraph/pkg/errors"
)

const nerSystemPrompt = `You are a high-precision Named Entity Recognition model. Your ONLY task is to identify key political figures, organizations, or specific political concepts from the user's text.

Follow these rules STRICTLY:
1. Respond ONLY with a valid JSON object. Do not add any text, markdown, or comments before or after the JSON.
2. The JSON object must have a single key: "entities".
3. The value of "entities" must be a list of strings.
4. If no relevant entities are found, the list must be empty.
5. Extract entities in their most common form (e.g., "Biden" for "Joe Biden", "President Biden").
6. Avoid extracting generic terms like "politics", "economy", "government" unless they refer to specific entities.`

// ExtractEntities runs the NER oracle on a text. Empty or garbage input yields
// an empty set, never an error; only transport failures fail the call.
func (c *Client) ExtractEntities(ctx context.Context, text string) ([]EntityMention, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	raw, err := c.chat(ctx, "ner", nerSystemPrompt, text)
	if err != nil {
		return nil, err
	}
	return parseEntities(raw)
}

func parseEntities(raw string) ([]EntityMention, error) {
	var payload struct {
		Entities []string `json:"entities"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return nil, apperrors.NewOracleMalformedOutput("ner", "unparseable JSON: "+err.Error())
	}

	// Dedupe case-insensitively, keeping the first surface form
	seen := make(map[string]bool)
	var mentions []EntityMention
	for _, name := range payload.Entities {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		mentions = append(mentions, EntityMention{Name: name, Type: "POLITICAL"})
	}
	return mentions, nil
}
