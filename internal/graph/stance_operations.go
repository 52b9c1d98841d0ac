package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	apperrors "stancegraph/pkg/errors"
)

// ============================================================================
// Stance Queries
// ============================================================================

// QualifyingStances returns every (user, entity, stance) assertion whose
// confidence meets the configured threshold. One row per post edge; the
// alliance builder deduplicates per user.
func (r *Repository) QualifyingStances(ctx context.Context) ([]StanceTriple, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User)-[:POSTED]->(p:Post)-[s:HAS_STANCE]->(e:Entity)
		WHERE s.confidence >= $threshold
		RETURN u.name AS user, e.id AS entity_id, e.name AS entity_name,
		       s.stance AS stance, s.confidence AS confidence
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"threshold": r.threshold,
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("qualifying stances", err)
	}

	var triples []StanceTriple
	for result.Next(ctx) {
		record := result.Record()
		triples = append(triples, StanceTriple{
			User:       getString(record, "user", ""),
			EntityID:   getString(record, "entity_id", ""),
			EntityName: getString(record, "entity_name", ""),
			Stance:     getString(record, "stance", ""),
			Confidence: getFloat64(record, "confidence", 0),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable("qualifying stances", err)
	}
	return triples, nil
}

// CommunityStanceProfile aggregates qualifying stance edges of a community's
// posts into per-(entity, stance) counts, strongest signals first.
func (r *Repository) CommunityStanceProfile(ctx context.Context, communityID string, limit int) ([]StanceCount, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if limit < 1 {
		limit = 20
	}

	query := `
		MATCH (p:Post)-[s:HAS_STANCE]->(e:Entity)
		WHERE p.communityId = $communityID AND s.confidence >= $threshold
		RETURN e.name AS entity, s.stance AS stance, count(*) AS count
		ORDER BY count DESC, entity ASC, stance ASC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"communityID": communityID,
		"threshold":   r.threshold,
		"limit":       limit,
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("community stance profile", err)
	}

	var profile []StanceCount
	for result.Next(ctx) {
		record := result.Record()
		profile = append(profile, StanceCount{
			Entity: getString(record, "entity", ""),
			Stance: getString(record, "stance", ""),
			Count:  getInt64(record, "count", 0),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable("community stance profile", err)
	}
	return profile, nil
}
