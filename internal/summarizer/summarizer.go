package summarizer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stancegraph/internal/graph"
	"stancegraph/internal/utils"
	apperrors "stancegraph/pkg/errors"
	"stancegraph/pkg/logger"
)

const stanceProfileLimit = 10

// Store is the slice of the graph store the summarizer needs
type Store interface {
	PostsForCommunity(ctx context.Context, communityID string) ([]graph.Post, error)
	CommunityStanceProfile(ctx context.Context, communityID string, limit int) ([]graph.StanceCount, error)
	UpdateCommunitySummary(ctx context.Context, communityID, summary string, embedding []float64, profile []graph.StanceCount) error
}

// Oracle is the slice of the language oracle the summarizer needs
type Oracle interface {
	SummarizeCommunity(ctx context.Context, exemplars []string) (string, error)
	EmbedOne(ctx context.Context, text string) ([]float64, error)
}

// Report summarizes one summarization run
type Report struct {
	Summarized int
	Skipped    []*apperrors.ErrNoPostsInCommunity
}

// Summarizer generates and stores a semantic summary per community from its
// most representative posts.
type Summarizer struct {
	store         Store
	oracle        Oracle
	popularityTop int
	exemplarCount int
	concurrency   int
	logger        *zap.Logger
}

// NewSummarizer creates a community summarizer. popularityTop bounds the
// candidate pool per community; exemplarCount is how many posts feed the
// summary prompt.
func NewSummarizer(store Store, oracle Oracle, popularityTop, exemplarCount, concurrency int) *Summarizer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Summarizer{
		store:         store,
		oracle:        oracle,
		popularityTop: popularityTop,
		exemplarCount: exemplarCount,
		concurrency:   concurrency,
		logger:        logger.Named("summarizer"),
	}
}

// Run summarizes every given community, a bounded number of them in flight at
// once. Communities whose members authored no posts are skipped and reported,
// not failed. The first hard error (oracle or store) aborts the run.
func (s *Summarizer) Run(ctx context.Context, communityIDs []string) (*Report, error) {
	report := &Report{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, id := range communityIDs {
		communityID := id
		g.Go(func() error {
			skipped, err := s.summarizeOne(gctx, communityID)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if skipped != nil {
				report.Skipped = append(report.Skipped, skipped)
			} else {
				report.Summarized++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	s.logger.Info("Community summarization completed",
		zap.Int("summarized", report.Summarized),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

func (s *Summarizer) summarizeOne(ctx context.Context, communityID string) (*apperrors.ErrNoPostsInCommunity, error) {
	posts, err := s.store.PostsForCommunity(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts for %s: %w", communityID, err)
	}
	if len(posts) == 0 {
		s.logger.Warn("Community has no posts, skipping", zap.String("community", communityID))
		return apperrors.NewNoPostsInCommunity(communityID), nil
	}

	exemplars := SelectExemplars(posts, s.popularityTop, s.exemplarCount)
	if len(exemplars) == 0 {
		// Members posted but nothing carries an embedding
		s.logger.Warn("Community has no embeddable posts, skipping", zap.String("community", communityID))
		return apperrors.NewNoPostsInCommunity(communityID), nil
	}

	texts := make([]string, 0, len(exemplars))
	for _, p := range exemplars {
		texts = append(texts, p.Content)
	}

	summary, err := s.oracle.SummarizeCommunity(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", communityID, err)
	}
	embedding, err := s.oracle.EmbedOne(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("failed to embed summary for %s: %w", communityID, err)
	}

	profile, err := s.store.CommunityStanceProfile(ctx, communityID, stanceProfileLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to build stance profile for %s: %w", communityID, err)
	}

	if err := s.store.UpdateCommunitySummary(ctx, communityID, summary, embedding, profile); err != nil {
		return nil, fmt.Errorf("failed to store summary for %s: %w", communityID, err)
	}

	s.logger.Info("Summarized community",
		zap.String("community", communityID),
		zap.Int("exemplars", len(exemplars)),
	)
	return nil, nil
}

// SelectExemplars picks the posts that best represent a community: the
// popularityTop highest-scoring posts form the candidate pool, and the
// exemplarCount candidates closest to the pool's embedding centroid win.
// Candidates without an embedding drop out of both the centroid and the
// ranking. Ordering is fully deterministic: popularity ties break on earlier
// timestamp then id, similarity ties on id.
func SelectExemplars(posts []graph.Post, popularityTop, exemplarCount int) []graph.Post {
	candidates := make([]graph.Post, 0, len(posts))
	for _, p := range posts {
		if len(p.Embedding) > 0 {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Timestamp != candidates[j].Timestamp {
			return candidates[i].Timestamp < candidates[j].Timestamp
		}
		return candidates[i].ID < candidates[j].ID
	})
	if popularityTop > 0 && len(candidates) > popularityTop {
		candidates = candidates[:popularityTop]
	}

	vectors := make([][]float64, 0, len(candidates))
	for _, p := range candidates {
		vectors = append(vectors, p.Embedding)
	}
	centroid := utils.Centroid(vectors)
	if len(centroid) == 0 {
		return nil
	}

	type scored struct {
		post graph.Post
		sim  float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, p := range candidates {
		ranked = append(ranked, scored{post: p, sim: utils.Cosine(p.Embedding, centroid)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].sim != ranked[j].sim {
			return ranked[i].sim > ranked[j].sim
		}
		return ranked[i].post.ID < ranked[j].post.ID
	})

	if exemplarCount > 0 && len(ranked) > exemplarCount {
		ranked = ranked[:exemplarCount]
	}
	exemplars := make([]graph.Post, 0, len(ranked))
	for _, r := range ranked {
		exemplars = append(exemplars, r.post)
	}
	return exemplars
}
