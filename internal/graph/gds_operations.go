package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "stancegraph/pkg/errors"
)

// ============================================================================
// GDS Delegation
// ============================================================================
//
// Community detection is delegated to the Graph Data Science library embedded
// in the store. The alliance graph itself is never persisted: its edge list is
// projected straight from memory into a named GDS graph, Leiden runs in stream
// mode, and the projection is dropped afterwards.

// DetectCommunities projects the given alliance edges into GDS, runs Leiden
// with the given resolution and seed, and returns the community id per user.
// Deterministic for a fixed seed (Leiden runs single-threaded when seeded).
func (r *Repository) DetectCommunities(ctx context.Context, graphName string, edges []AllianceEdge, gamma float64, seed int) (map[string]int64, error) {
	if len(edges) == 0 {
		return nil, fmt.Errorf("cannot project an alliance graph with no edges")
	}

	if err := r.dropProjection(ctx, graphName); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.dropProjection(context.Background(), graphName); err != nil {
			r.logger.Warn("Failed to drop GDS projection", zap.String("graph", graphName), zap.Error(err))
		}
	}()

	// Projecting mutates the GDS graph catalog, so the session must route to
	// a writer even though no graph data changes.
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	encoded := make([]map[string]interface{}, 0, len(edges))
	for _, e := range edges {
		encoded = append(encoded, map[string]interface{}{
			"u1":     e.U1,
			"u2":     e.U2,
			"weight": float64(e.Weight),
		})
	}

	projectQuery := `
		UNWIND $edges AS edge
		MATCH (u1:User {name: edge.u1})
		MATCH (u2:User {name: edge.u2})
		WITH gds.graph.project(
			$graphName, u1, u2,
			{relationshipProperties: {weight: edge.weight}},
			{undirectedRelationshipTypes: ['*']}
		) AS g
		RETURN g.graphName AS graphName,
		       max(g.nodeCount) AS nodes,
		       max(g.relationshipCount) AS rels
	`
	result, err := session.Run(ctx, projectQuery, map[string]interface{}{
		"graphName": graphName,
		"edges":     encoded,
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("project alliance graph", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("project alliance graph", err)
	}
	r.logger.Info("Projected alliance graph into GDS",
		zap.String("graph", graphName),
		zap.Int64("nodes", getInt64(record, "nodes", 0)),
		zap.Int64("relationships", getInt64(record, "rels", 0)),
	)

	leidenQuery := `
		CALL gds.leiden.stream($graphName, {
			relationshipWeightProperty: 'weight',
			gamma: $gamma,
			randomSeed: $seed,
			concurrency: 1
		})
		YIELD nodeId, communityId
		RETURN gds.util.asNode(nodeId).name AS user, communityId
	`
	leidenResult, err := session.Run(ctx, leidenQuery, map[string]interface{}{
		"graphName": graphName,
		"gamma":     gamma,
		"seed":      seed,
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("leiden", err)
	}

	assignment := make(map[string]int64)
	for leidenResult.Next(ctx) {
		rec := leidenResult.Record()
		user := getString(rec, "user", "")
		if user == "" {
			continue
		}
		assignment[user] = getInt64(rec, "communityId", 0)
	}
	if err := leidenResult.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable("leiden", err)
	}

	r.logger.Info("Leiden completed",
		zap.String("graph", graphName),
		zap.Float64("gamma", gamma),
		zap.Int("users", len(assignment)),
	)
	return assignment, nil
}

// dropProjection removes a named GDS graph if it exists, making runs repeatable
func (r *Repository) dropProjection(ctx context.Context, graphName string) error {
	// Dropping mutates the GDS graph catalog; a read-routed session could land
	// on a replica and leak the projection.
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		CALL gds.graph.exists($graphName) YIELD exists
		WHERE exists
		CALL gds.graph.drop($graphName) YIELD graphName
		RETURN graphName
	`
	_, err := session.Run(ctx, query, map[string]interface{}{"graphName": graphName})
	if err != nil {
		return apperrors.NewStoreUnavailable("drop gds projection", err)
	}
	return nil
}
