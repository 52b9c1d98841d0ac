package oracle

import (
	"context"
	"fmt"
	"strings"
)

const summarySystemPrompt = `You are a political discourse analyst. You receive a small set of representative posts from one online community. Write a concise, neutral summary (3-5 sentences) of the shared ideological perspective these posts express: which entities the community supports or opposes and the recurring arguments. Do not quote the posts verbatim and do not mention that you were given posts.`

const answerSystemPrompt = `You are an assistant that answers questions about public political discourse using ONLY the provided context. Ground every claim in the context; if the context does not support an answer, say so. Be concise and neutral.`

// SummarizeCommunity asks the generation oracle for a semantic summary of a
// community, given only its exemplar post texts.
func (c *Client) SummarizeCommunity(ctx context.Context, exemplars []string) (string, error) {
	var sb strings.Builder
	for i, text := range exemplars {
		fmt.Fprintf(&sb, "POST %d:\n%s\n---\n", i+1, text)
	}
	return c.chat(ctx, "generation", summarySystemPrompt, sb.String())
}

// AnswerQuery asks the generation oracle to answer a user query against
// retrieved context.
func (c *Client) AnswerQuery(ctx context.Context, contextBlock, query string) (string, error) {
	userMsg := fmt.Sprintf("### CONTEXT\n%s\n\n### QUESTION\n%s", contextBlock, query)
	return c.chat(ctx, "generation", answerSystemPrompt, userMsg)
}
