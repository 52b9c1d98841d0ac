package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"stancegraph/internal/graph"
	"stancegraph/internal/oracle"
	"stancegraph/internal/utils"
	"stancegraph/pkg/logger"
)

// Match types reported on every answer, naming the retrieval path that
// produced its sources.
const (
	MatchStructural     = "structural"
	MatchVectorFallback = "vector-fallback"
)

const (
	candidateLimit = 50
	summaryLimit   = 3
)

// Store is the slice of the graph store the orchestrator needs
type Store interface {
	PostsMentioning(ctx context.Context, entityNames []string, stanceIntent string, limit int) ([]graph.Post, error)
	VectorSearchPosts(ctx context.Context, embedding []float64, topK int) ([]graph.ScoredPost, error)
	CommunitySummariesForEntities(ctx context.Context, entityNames []string, limit int) ([]graph.CommunitySummary, error)
}

// Oracle is the slice of the language oracle the orchestrator needs
type Oracle interface {
	ExtractEntities(ctx context.Context, text string) ([]oracle.EntityMention, error)
	ClassifyStance(ctx context.Context, text, entity string) (oracle.StanceResult, error)
	EmbedOne(ctx context.Context, text string) ([]float64, error)
	AnswerQuery(ctx context.Context, contextBlock, query string) (string, error)
}

// intentMinConfidence is the floor for treating the query's own stance toward
// an entity as a retrieval filter
const intentMinConfidence = 0.7

// Result is the orchestrator's answer to one query. Sources and match type
// are always populated when retrieval succeeded, even if the final generation
// step failed.
type Result struct {
	Answer           string                   `json:"answer"`
	MatchType        string                   `json:"match_type"`
	Entities         []string                 `json:"entities,omitempty"`
	StanceIntent     string                   `json:"stance_intent,omitempty"`
	Sources          []graph.ScoredPost       `json:"sources"`
	Communities      []graph.CommunitySummary `json:"communities,omitempty"`
	GenerationFailed bool                     `json:"generation_failed,omitempty"`
}

// Orchestrator runs the two-stage hybrid retrieval flow: structural retrieval
// over extracted entities with an embedding rerank, falling back to pure
// vector search when the structural path yields nothing.
type Orchestrator struct {
	store       Store
	oracle      Oracle
	topK        int
	stepTimeout time.Duration
	logger      *zap.Logger
}

// NewOrchestrator creates a query orchestrator. stepTimeout bounds each
// oracle/store step separately so one slow hop cannot eat the whole budget.
func NewOrchestrator(store Store, oracle Oracle, topK int, stepTimeout time.Duration) *Orchestrator {
	if topK < 1 {
		topK = 10
	}
	if stepTimeout <= 0 {
		stepTimeout = 30 * time.Second
	}
	return &Orchestrator{
		store:       store,
		oracle:      oracle,
		topK:        topK,
		stepTimeout: stepTimeout,
		logger:      logger.Named("orchestrator"),
	}
}

type state int

const (
	stateExtract state = iota
	stateRetrieve
	stateRerank
	stateFallback
	stateGenerate
	stateDone
)

// maxSteps bounds the state machine; the flow visits each state at most once
const maxSteps = 6

// Answer resolves a user query. Every run terminates: the flow is a bounded
// walk extract -> retrieve -> rerank -> generate, with a single detour to the
// vector fallback when extraction or structural retrieval comes up empty. A
// non-nil Result is returned alongside a generation error so callers can
// still surface the retrieved evidence.
func (o *Orchestrator) Answer(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	res := &Result{}
	var structural []graph.Post

	current := stateExtract
	for step := 0; step < maxSteps && current != stateDone; step++ {
		switch current {
		case stateExtract:
			mentions, err := o.extract(ctx, query)
			if err != nil {
				// NER down: degrade to vector search instead of failing the query
				o.logger.Warn("Entity extraction failed, degrading to vector search", zap.Error(err))
				current = stateFallback
				continue
			}
			for _, m := range mentions {
				res.Entities = append(res.Entities, m.Name)
			}
			if len(res.Entities) == 0 {
				current = stateFallback
				continue
			}
			res.StanceIntent = o.detectIntent(ctx, query, res.Entities[0])
			current = stateRetrieve

		case stateRetrieve:
			posts, err := o.retrieve(ctx, res.Entities, res.StanceIntent)
			if err != nil {
				return nil, err
			}
			if len(posts) == 0 {
				o.logger.Info("No structural candidates, degrading to vector search",
					zap.Strings("entities", res.Entities))
				current = stateFallback
				continue
			}
			structural = posts
			current = stateRerank

		case stateRerank:
			sources, err := o.rerank(ctx, query, structural)
			if err != nil {
				return nil, err
			}
			res.Sources = sources
			res.MatchType = MatchStructural
			res.Communities = o.communityContext(ctx, res.Entities)
			current = stateGenerate

		case stateFallback:
			sources, err := o.fallback(ctx, query)
			if err != nil {
				return nil, err
			}
			res.Sources = sources
			res.MatchType = MatchVectorFallback
			current = stateGenerate

		case stateGenerate:
			answer, err := o.generate(ctx, query, res)
			if err != nil {
				res.GenerationFailed = true
				return res, err
			}
			res.Answer = answer
			current = stateDone
		}
	}

	o.logger.Info("Answered query",
		zap.String("match_type", res.MatchType),
		zap.Int("sources", len(res.Sources)),
		zap.Strings("entities", res.Entities),
	)
	return res, nil
}

func (o *Orchestrator) extract(ctx context.Context, query string) ([]oracle.EntityMention, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	return o.oracle.ExtractEntities(stepCtx, query)
}

// detectIntent classifies the query's own stance toward its primary entity so
// "who supports X" only retrieves favorable posts. Best-effort: any failure or
// a weak/neutral result means no filter.
func (o *Orchestrator) detectIntent(ctx context.Context, query, entity string) string {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	result, err := o.oracle.ClassifyStance(stepCtx, query, entity)
	if err != nil {
		o.logger.Debug("Stance intent detection failed, retrieving unfiltered", zap.Error(err))
		return ""
	}
	if result.Confidence < intentMinConfidence {
		return ""
	}
	switch result.Stance {
	case graph.StanceFavorable, graph.StanceOpposed:
		return result.Stance
	}
	return ""
}

func (o *Orchestrator) retrieve(ctx context.Context, entities []string, stanceIntent string) ([]graph.Post, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	posts, err := o.store.PostsMentioning(stepCtx, entities, stanceIntent, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("structural retrieval failed: %w", err)
	}
	// A stance-filtered query with no hits retries unfiltered before giving up
	if len(posts) == 0 && stanceIntent != "" {
		posts, err = o.store.PostsMentioning(stepCtx, entities, "", candidateLimit)
		if err != nil {
			return nil, fmt.Errorf("structural retrieval failed: %w", err)
		}
	}
	return posts, nil
}

// rerank orders structural candidates by cosine similarity to the query
// embedding and keeps the top K. Candidates without an embedding rank last.
func (o *Orchestrator) rerank(ctx context.Context, query string, candidates []graph.Post) ([]graph.ScoredPost, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	queryVec, err := o.oracle.EmbedOne(stepCtx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return Rerank(candidates, queryVec, o.topK), nil
}

func (o *Orchestrator) fallback(ctx context.Context, query string) ([]graph.ScoredPost, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	queryVec, err := o.oracle.EmbedOne(stepCtx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	sources, err := o.store.VectorSearchPosts(stepCtx, queryVec, o.topK)
	if err != nil {
		return nil, fmt.Errorf("vector fallback failed: %w", err)
	}
	return sources, nil
}

// communityContext is best-effort enrichment: a store hiccup here costs the
// community summaries, never the answer.
func (o *Orchestrator) communityContext(ctx context.Context, entities []string) []graph.CommunitySummary {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	summaries, err := o.store.CommunitySummariesForEntities(stepCtx, entities, summaryLimit)
	if err != nil {
		o.logger.Warn("Failed to fetch community summaries", zap.Error(err))
		return nil
	}
	return summaries
}

func (o *Orchestrator) generate(ctx context.Context, query string, res *Result) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	answer, err := o.oracle.AnswerQuery(stepCtx, BuildContext(res), query)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return answer, nil
}

// Rerank is the pure core of the structural branch's second stage
func Rerank(candidates []graph.Post, queryVec []float64, topK int) []graph.ScoredPost {
	scored := make([]graph.ScoredPost, 0, len(candidates))
	for _, p := range candidates {
		scored = append(scored, graph.ScoredPost{
			Post:       p,
			Similarity: utils.Cosine(p.Embedding, queryVec),
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].ID < scored[j].ID
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// BuildContext renders retrieved evidence into the generation prompt's
// context block: community perspectives first, then the posts.
func BuildContext(res *Result) string {
	var sb strings.Builder
	if len(res.Communities) > 0 {
		sb.WriteString("## Community perspectives\n")
		for _, c := range res.Communities {
			fmt.Fprintf(&sb, "[%s] %s\n", c.ID, c.Summary)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("## Posts\n")
	for i, s := range res.Sources {
		fmt.Fprintf(&sb, "POST %d (author: %s, forum: %s", i+1, s.Author, s.Forum)
		if len(s.Entities) > 0 {
			fmt.Fprintf(&sb, ", mentions: %s", strings.Join(s.Entities, ", "))
		}
		if s.Stance != "" {
			fmt.Fprintf(&sb, ", stance: %s", s.Stance)
		}
		fmt.Fprintf(&sb, "):\n%s\n---\n", s.Content)
	}
	return sb.String()
}

