package oracle

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	apperrors "stancegraph/pkg/errors"
)

// Embed returns one embedding vector per input text. The same model serves
// posts, queries and community summaries so similarities stay comparable.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: texts,
	})
	if err != nil {
		return nil, apperrors.NewOracleUnavailable("embedding", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperrors.NewOracleMalformedOutput("embedding", "vector count does not match input count")
	}

	vectors := make([][]float64, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, apperrors.NewOracleMalformedOutput("embedding", "vector index out of range")
		}
		vec := make([]float64, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float64(v)
		}
		vectors[item.Index] = vec
	}

	c.logger.Debug("Generated embeddings", zap.Int("texts", len(texts)))
	return vectors, nil
}

// EmbedOne is a convenience wrapper for a single text
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, apperrors.NewOracleMalformedOutput("embedding", "expected exactly one vector")
	}
	return vectors[0], nil
}
