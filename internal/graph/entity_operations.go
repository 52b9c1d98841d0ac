package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "stancegraph/pkg/errors"
)

// ============================================================================
// Entity Resolution Operations
// ============================================================================

// ListEntitiesWithDegree returns every entity together with its incoming
// MENTIONS + HAS_STANCE edge count, ordered by id for determinism.
func (r *Repository) ListEntitiesWithDegree(ctx context.Context) ([]EntityDegree, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (e:Entity)
		OPTIONAL MATCH (p:Post)-[rel]->(e)
		WHERE type(rel) IN ['MENTIONS', 'HAS_STANCE']
		WITH e, count(rel) AS degree
		RETURN e.id AS id, e.name AS name, e.type AS type, degree
		ORDER BY id
	`

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("list entities", err)
	}

	var entities []EntityDegree
	for result.Next(ctx) {
		record := result.Record()
		entities = append(entities, EntityDegree{
			Entity: Entity{
				ID:   getString(record, "id", ""),
				Name: getString(record, "name", ""),
				Type: getString(record, "type", ""),
			},
			Degree: getInt64(record, "degree", 0),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable("list entities", err)
	}
	return entities, nil
}

// MergeEntityCluster redirects all edges from the losing entities onto the
// canonical one and deletes the losers. Duplicate HAS_STANCE edges keep the
// highest confidence; duplicate MENTIONS edges keep the union of sentence
// contexts. The whole cluster merge runs in one transaction.
func (r *Repository) MergeEntityCluster(ctx context.Context, canonicalID string, loserIDs []string) error {
	if len(loserIDs) == 0 {
		return nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		params := map[string]interface{}{
			"canonicalID": canonicalID,
			"loserIDs":    loserIDs,
		}

		mentionsQuery := `
			MATCH (canonical:Entity {id: $canonicalID})
			UNWIND $loserIDs AS loserID
			MATCH (loser:Entity {id: loserID})
			MATCH (p:Post)-[m:MENTIONS]->(loser)
			MERGE (p)-[m2:MENTIONS]->(canonical)
			ON CREATE SET m2.sentences = coalesce(m.sentences, [])
			ON MATCH SET m2.sentences = coalesce(m2.sentences, []) +
				[s IN coalesce(m.sentences, []) WHERE NOT s IN coalesce(m2.sentences, [])]
			DELETE m
		`
		if _, err := tx.Run(ctx, mentionsQuery, params); err != nil {
			return nil, fmt.Errorf("failed to redirect MENTIONS edges: %w", err)
		}

		stanceQuery := `
			MATCH (canonical:Entity {id: $canonicalID})
			UNWIND $loserIDs AS loserID
			MATCH (loser:Entity {id: loserID})
			MATCH (p:Post)-[s:HAS_STANCE]->(loser)
			MERGE (p)-[s2:HAS_STANCE]->(canonical)
			ON CREATE SET s2.stance = s.stance, s2.confidence = s.confidence
			ON MATCH SET s2 += CASE WHEN s.confidence > s2.confidence
				THEN {stance: s.stance, confidence: s.confidence}
				ELSE {} END
			DELETE s
		`
		if _, err := tx.Run(ctx, stanceQuery, params); err != nil {
			return nil, fmt.Errorf("failed to redirect HAS_STANCE edges: %w", err)
		}

		deleteQuery := `
			UNWIND $loserIDs AS loserID
			MATCH (loser:Entity {id: loserID})
			DETACH DELETE loser
		`
		if _, err := tx.Run(ctx, deleteQuery, params); err != nil {
			return nil, fmt.Errorf("failed to delete merged entities: %w", err)
		}

		return nil, nil
	})
	if err != nil {
		return apperrors.NewStoreUnavailable("merge entity cluster", err)
	}

	r.logger.Info("Merged entity cluster",
		zap.String("canonical_id", canonicalID),
		zap.Int("merged", len(loserIDs)),
	)
	return nil
}
