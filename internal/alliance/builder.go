package alliance

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"stancegraph/internal/graph"
	"stancegraph/pkg/logger"
)

// Graph is the projected ideological-alliance graph: weighted, undirected,
// held purely in memory. It is recomputed from scratch on every analysis run
// so stale alliances never outlive new data or re-resolved entities.
type Graph struct {
	Users []string
	Edges []graph.AllianceEdge
}

// Store is the slice of the graph store the builder needs
type Store interface {
	QualifyingStances(ctx context.Context) ([]graph.StanceTriple, error)
}

// Builder projects the alliance graph from qualifying stance edges
type Builder struct {
	store     Store
	threshold float64
	logger    *zap.Logger
}

// NewBuilder creates an alliance graph builder
func NewBuilder(store Store, confidenceThreshold float64) *Builder {
	return &Builder{
		store:     store,
		threshold: confidenceThreshold,
		logger:    logger.Named("alliance"),
	}
}

// Build fetches the current qualifying stance assertions and projects them
func (b *Builder) Build(ctx context.Context) (*Graph, error) {
	triples, err := b.store.QualifyingStances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stance assertions: %w", err)
	}

	g := Project(triples, b.threshold)
	b.logger.Info("Projected alliance graph",
		zap.Int("stance_assertions", len(triples)),
		zap.Int("users", len(g.Users)),
		zap.Int("edges", len(g.Edges)),
	)
	return g, nil
}

// Project builds the alliance graph from stance assertions. Sub-threshold
// assertions are excluded even if the store already filtered, so the
// confidence gate holds regardless of the data source. An edge's weight is
// the count of distinct entities on which the two users share at least one
// stance; users with no qualifying assertion are excluded entirely.
func Project(triples []graph.StanceTriple, threshold float64) *Graph {
	// entity -> stance -> users holding it
	groups := make(map[string]map[string]map[string]bool)
	userSet := make(map[string]bool)

	for _, t := range triples {
		if t.Confidence < threshold || t.User == "" {
			continue
		}
		entity := t.EntityID
		if entity == "" {
			entity = t.EntityName
		}
		if entity == "" {
			continue
		}
		if groups[entity] == nil {
			groups[entity] = make(map[string]map[string]bool)
		}
		if groups[entity][t.Stance] == nil {
			groups[entity][t.Stance] = make(map[string]bool)
		}
		groups[entity][t.Stance][t.User] = true
		userSet[t.User] = true
	}

	// pair -> distinct entities it agrees on. Agreement on the same entity
	// under two stances still counts once.
	type pair struct{ u1, u2 string }
	shared := make(map[pair]map[string]bool)

	for entity, byStance := range groups {
		for _, users := range byStance {
			members := make([]string, 0, len(users))
			for u := range users {
				members = append(members, u)
			}
			sort.Strings(members)
			for i := 0; i < len(members); i++ {
				for j := i + 1; j < len(members); j++ {
					p := pair{members[i], members[j]}
					if shared[p] == nil {
						shared[p] = make(map[string]bool)
					}
					shared[p][entity] = true
				}
			}
		}
	}

	edges := make([]graph.AllianceEdge, 0, len(shared))
	for p, entities := range shared {
		edges = append(edges, graph.AllianceEdge{
			U1:     p.u1,
			U2:     p.u2,
			Weight: int64(len(entities)),
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].U1 != edges[j].U1 {
			return edges[i].U1 < edges[j].U1
		}
		return edges[i].U2 < edges[j].U2
	})

	users := make([]string, 0, len(userSet))
	for u := range userSet {
		users = append(users, u)
	}
	sort.Strings(users)

	return &Graph{Users: users, Edges: edges}
}

// Weight returns the weight between two users, 0 when no edge exists.
// Symmetric by construction.
func (g *Graph) Weight(u1, u2 string) int64 {
	if u2 < u1 {
		u1, u2 = u2, u1
	}
	for _, e := range g.Edges {
		if e.U1 == u1 && e.U2 == u2 {
			return e.Weight
		}
	}
	return 0
}
