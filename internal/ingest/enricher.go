package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stancegraph/internal/graph"
	"stancegraph/internal/oracle"
	apperrors "stancegraph/pkg/errors"
	"stancegraph/pkg/logger"
)

// Oracle is the slice of the language oracle the enricher needs
type Oracle interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	ExtractEntities(ctx context.Context, text string) ([]oracle.EntityMention, error)
	ClassifyStance(ctx context.Context, text, entity string) (oracle.StanceResult, error)
}

// Stats counts what one enrichment batch produced and dropped
type Stats struct {
	Posts            int
	Mentions         int
	Stances          int
	MalformedDropped int
}

// Enricher turns raw posts into load-ready enriched posts: one embedding per
// post, entity mentions from the NER oracle and a stance per (post, entity)
// pair. Malformed oracle output drops the affected record and is counted;
// an unreachable oracle aborts the batch.
type Enricher struct {
	oracle      Oracle
	concurrency int
	logger      *zap.Logger
}

// NewEnricher creates a post enricher with a bounded number of concurrent
// oracle calls.
func NewEnricher(oracle Oracle, concurrency int) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{
		oracle:      oracle,
		concurrency: concurrency,
		logger:      logger.Named("enricher"),
	}
}

// EnrichBatch enriches one batch of raw posts
func (e *Enricher) EnrichBatch(ctx context.Context, posts []RawPost) ([]graph.EnrichedPost, *Stats, error) {
	if len(posts) == 0 {
		return nil, &Stats{}, nil
	}

	cleaned := make([]string, len(posts))
	for i, p := range posts {
		cleaned[i] = Clean(p.Content)
	}

	// One embedding call for the whole batch
	vectors, err := e.oracle.Embed(ctx, cleaned)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed batch: %w", err)
	}

	enriched := make([]graph.EnrichedPost, len(posts))
	stats := &Stats{Posts: len(posts)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range posts {
		idx := i
		g.Go(func() error {
			post := posts[idx]
			ep := graph.EnrichedPost{
				ID:             post.ID,
				Author:         post.Author,
				Content:        post.Content,
				CleanedContent: cleaned[idx],
				Timestamp:      post.Timestamp,
				Score:          post.Score,
				Forum:          post.Forum,
				ParentID:       post.ParentID,
				Embedding:      vectors[idx],
			}

			dropped, err := e.annotate(gctx, &ep)
			if err != nil {
				return err
			}

			mu.Lock()
			enriched[idx] = ep
			stats.Mentions += len(ep.Mentions)
			stats.Stances += len(ep.Stances)
			stats.MalformedDropped += dropped
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	e.logger.Info("Enriched batch",
		zap.Int("posts", stats.Posts),
		zap.Int("mentions", stats.Mentions),
		zap.Int("stances", stats.Stances),
		zap.Int("malformed_dropped", stats.MalformedDropped),
	)
	return enriched, stats, nil
}

// annotate fills mentions and stances for one post, returning the count of
// records dropped for malformed oracle output.
func (e *Enricher) annotate(ctx context.Context, ep *graph.EnrichedPost) (int, error) {
	dropped := 0

	mentions, err := e.oracle.ExtractEntities(ctx, ep.CleanedContent)
	if err != nil {
		if apperrors.IsMalformedOutput(err) {
			e.logger.Warn("Dropped post annotations, NER output malformed", zap.String("post", ep.ID))
			return 1, nil
		}
		return 0, err
	}

	for _, m := range mentions {
		ep.Mentions = append(ep.Mentions, graph.Mention{
			EntityName: m.Name,
			EntityType: m.Type,
			Sentence:   sentenceFor(ep.Content, m.Name),
		})

		result, err := e.oracle.ClassifyStance(ctx, ep.CleanedContent, m.Name)
		if err != nil {
			if apperrors.IsMalformedOutput(err) {
				dropped++
				e.logger.Warn("Dropped stance, oracle output malformed",
					zap.String("post", ep.ID),
					zap.String("entity", m.Name),
				)
				continue
			}
			return dropped, err
		}
		ep.Stances = append(ep.Stances, graph.StanceAssertion{
			EntityName: m.Name,
			Stance:     result.Stance,
			Confidence: result.Confidence,
		})
	}
	return dropped, nil
}

// sentenceFor returns the first sentence of text mentioning name, for mention
// provenance. Falls back to empty when no sentence matches.
func sentenceFor(text, name string) string {
	lowered := strings.ToLower(name)
	for _, sentence := range splitSentences(text) {
		if strings.Contains(strings.ToLower(sentence), lowered) {
			return strings.TrimSpace(sentence)
		}
	}
	return ""
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
}
