package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "stancegraph/pkg/errors"
)

// ============================================================================
// Community Persistence
// ============================================================================

// ReplaceCommunities drops every existing Community node and assignment and
// writes the new partition in a single transaction, so concurrent readers see
// either the previous partition or the new one, never a mix.
func (r *Repository) ReplaceCommunities(ctx context.Context, memberships []Membership) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		wipe := []string{
			"MATCH (c:Community) DETACH DELETE c",
			"MATCH (u:User) WHERE u.communityId IS NOT NULL REMOVE u.communityId",
			"MATCH (p:Post) WHERE p.communityId IS NOT NULL REMOVE p.communityId",
		}
		for _, q := range wipe {
			if _, err := tx.Run(ctx, q, nil); err != nil {
				return nil, fmt.Errorf("failed to clear previous communities: %w", err)
			}
		}

		if len(memberships) == 0 {
			return nil, nil
		}

		encoded := make([]map[string]interface{}, 0, len(memberships))
		for _, m := range memberships {
			encoded = append(encoded, map[string]interface{}{
				"id":      m.ID,
				"members": m.Members,
			})
		}

		assignUsers := `
			UNWIND $communities AS com
			CREATE (c:Community {id: com.id, level: 0, size: size(com.members)})
			WITH c, com
			UNWIND com.members AS member
			MATCH (u:User {name: member})
			SET u.communityId = com.id
			MERGE (u)-[:MEMBER_OF]->(c)
		`
		if _, err := tx.Run(ctx, assignUsers, map[string]interface{}{"communities": encoded}); err != nil {
			return nil, fmt.Errorf("failed to assign users to communities: %w", err)
		}

		assignPosts := `
			MATCH (u:User)-[:POSTED]->(p:Post)
			WHERE u.communityId IS NOT NULL
			SET p.communityId = u.communityId
			WITH p, u.communityId AS cid
			MATCH (c:Community {id: cid})
			MERGE (p)-[:PART_OF]->(c)
		`
		if _, err := tx.Run(ctx, assignPosts, nil); err != nil {
			return nil, fmt.Errorf("failed to assign posts to communities: %w", err)
		}

		return nil, nil
	})
	if err != nil {
		return apperrors.NewStoreUnavailable("replace communities", err)
	}

	r.logger.Info("Replaced communities", zap.Int("communities", len(memberships)))
	return nil
}

// UpdateCommunitySummary stores the generated summary, its embedding and the
// aggregate stance profile on a community node.
func (r *Repository) UpdateCommunitySummary(ctx context.Context, communityID, summary string, embedding []float64, profile []StanceCount) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode stance profile: %w", err)
	}

	query := `
		MATCH (c:Community {id: $communityID})
		SET c.summary = $summary,
		    c.embedding = $embedding,
		    c.stance_profile = $profile
		RETURN c.id AS id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"communityID": communityID,
		"summary":     summary,
		"embedding":   embedding,
		"profile":     string(profileJSON),
	})
	if err != nil {
		return apperrors.NewStoreUnavailable("update community summary", err)
	}
	if _, err := result.Single(ctx); err != nil {
		return fmt.Errorf("community not found: %s", communityID)
	}

	return nil
}

// ListCommunities returns all communities with their stored summaries and profiles
func (r *Repository) ListCommunities(ctx context.Context) ([]Community, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (c:Community)
		RETURN c.id AS id, c.level AS level, c.size AS size,
		       c.summary AS summary, c.stance_profile AS stance_profile
		ORDER BY c.size DESC, c.id ASC
	`

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("list communities", err)
	}

	var communities []Community
	for result.Next(ctx) {
		record := result.Record()
		c := Community{
			ID:      getString(record, "id", ""),
			Level:   getInt64(record, "level", 0),
			Size:    getInt64(record, "size", 0),
			Summary: getString(record, "summary", ""),
		}
		if raw := getString(record, "stance_profile", ""); raw != "" {
			// Stored as JSON; a decode failure leaves the profile empty
			_ = json.Unmarshal([]byte(raw), &c.StanceProfile)
		}
		communities = append(communities, c)
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable("list communities", err)
	}
	return communities, nil
}

// PostsForCommunity returns every post authored by a member of the community,
// with embeddings, for exemplar selection.
func (r *Repository) PostsForCommunity(ctx context.Context, communityID string) ([]Post, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {communityId: $communityID})-[:POSTED]->(p:Post)
		RETURN p.id AS id, p.author AS author, p.content AS content,
		       p.timestamp AS timestamp, p.score AS score, p.forum AS forum,
		       p.embedding AS embedding
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"communityID": communityID,
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("community posts", err)
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
			CommunityID: communityID,
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable("community posts", err)
	}
	return posts, nil
}
