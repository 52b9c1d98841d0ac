package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	apperrors "stancegraph/pkg/errors"
)

// ============================================================================
// Retrieval Queries
// ============================================================================

// PostsMentioning returns candidate posts structurally connected to any of the
// given entity names via MENTIONS or qualifying HAS_STANCE edges. Entity names
// are matched fuzzily through the fulltext index so surface-form variants
// still hit. When stanceIntent is FAVORABLE or OPPOSED, only posts holding
// that stance toward a matched entity qualify.
func (r *Repository) PostsMentioning(ctx context.Context, entityNames []string, stanceIntent string, limit int) ([]Post, error) {
	if len(entityNames) == 0 {
		return nil, nil
	}
	if limit < 1 {
		limit = 50
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	var intent interface{}
	if stanceIntent != "" {
		intent = stanceIntent
	}

	query := `
		UNWIND $entityNames AS entityName
		CALL db.index.fulltext.queryNodes('entity_names_ft', entityName + '~') YIELD node AS e
		MATCH (p:Post)
		WHERE ((p)-[:MENTIONS]->(e) AND $stanceIntent IS NULL)
		   OR EXISTS {
		        MATCH (p)-[s:HAS_STANCE]->(e)
		        WHERE s.confidence >= $threshold
		          AND ($stanceIntent IS NULL OR s.stance = $stanceIntent)
		      }
		WITH DISTINCT p
		OPTIONAL MATCH (p)-[:MENTIONS]->(me:Entity)
		WITH p, collect(DISTINCT me.name) AS entities
		RETURN p.id AS id, p.author AS author, p.content AS content,
		       p.timestamp AS timestamp, p.score AS score, p.forum AS forum,
		       p.embedding AS embedding, p.communityId AS community_id,
		       entities
		ORDER BY p.score DESC, p.id ASC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"entityNames":  entityNames,
		"stanceIntent": intent,
		"threshold":    r.threshold,
		"limit":        limit,
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("structural retrieval", err)
	}

	var posts []Post
	for result.Next(ctx) {
		record := result.Record()
		posts = append(posts, Post{
			ID:          getString(record, "id", ""),
			Author:      getString(record, "author", ""),
			Content:     getString(record, "content", ""),
			Timestamp:   getInt64(record, "timestamp", 0),
			Score:       getInt64(record, "score", 0),
			Forum:       getString(record, "forum", ""),
			Embedding:   getFloatSlice(record, "embedding"),
			CommunityID: getString(record, "community_id", ""),
			Entities:    getStringSlice(record, "entities"),
			Stance:      stanceIntent,
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable("structural retrieval", err)
	}
	return posts, nil
}

// VectorSearchPosts performs a pure nearest-neighbor search over all post
// embeddings. Non-empty whenever the store holds at least one indexed post.
func (r *Repository) VectorSearchPosts(ctx context.Context, embedding []float64, topK int) ([]ScoredPost, error) {
	if topK < 1 {
		topK = 10
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		CALL db.index.vector.queryNodes('post_embedding', $topK, $embedding)
		YIELD node, score
		OPTIONAL MATCH (node)-[:MENTIONS]->(me:Entity)
		WITH node, score, collect(DISTINCT me.name) AS entities
		RETURN node.id AS id, node.author AS author, node.content AS content,
		       node.timestamp AS timestamp, node.score AS post_score,
		       node.forum AS forum, node.communityId AS community_id,
		       entities, score
		ORDER BY score DESC, id ASC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"topK":      topK,
		"embedding": embedding,
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("vector search", err)
	}

	var posts []ScoredPost
	for result.Next(ctx) {
		record := result.Record()
		posts = append(posts, ScoredPost{
			Post: Post{
				ID:          getString(record, "id", ""),
				Author:      getString(record, "author", ""),
				Content:     getString(record, "content", ""),
				Timestamp:   getInt64(record, "timestamp", 0),
				Score:       getInt64(record, "post_score", 0),
				Forum:       getString(record, "forum", ""),
				CommunityID: getString(record, "community_id", ""),
				Entities:    getStringSlice(record, "entities"),
			},
			Similarity: getFloat64(record, "score", 0),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable("vector search", err)
	}
	return posts, nil
}

// CommunitySummariesForEntities returns summaries of communities whose posts
// hold qualifying stances toward any of the given entities. Used to prepend
// community-level perspective to structurally retrieved post context.
func (r *Repository) CommunitySummariesForEntities(ctx context.Context, entityNames []string, limit int) ([]CommunitySummary, error) {
	if len(entityNames) == 0 {
		return nil, nil
	}
	if limit < 1 {
		limit = 5
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		UNWIND $entityNames AS entityName
		CALL db.index.fulltext.queryNodes('entity_names_ft', entityName + '~') YIELD node AS e
		MATCH (p:Post)-[s:HAS_STANCE]->(e)
		WHERE s.confidence >= $threshold AND p.communityId IS NOT NULL
		MATCH (c:Community {id: p.communityId})
		WHERE c.summary IS NOT NULL AND c.summary <> ''
		RETURN DISTINCT c.id AS id, c.summary AS summary
		ORDER BY id
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"entityNames": entityNames,
		"threshold":   r.threshold,
		"limit":       limit,
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("community summaries", err)
	}

	var summaries []CommunitySummary
	for result.Next(ctx) {
		record := result.Record()
		summaries = append(summaries, CommunitySummary{
			ID:      getString(record, "id", ""),
			Summary: getString(record, "summary", ""),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable("community summaries", err)
	}
	return summaries, nil
}
