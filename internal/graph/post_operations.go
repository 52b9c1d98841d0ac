package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "stancegraph/pkg/errors"
)

// ============================================================================
// Post Ingestion
// ============================================================================

// LoadEnrichedPosts upserts a batch of enriched posts with their authors,
// reply links, mentions and stance edges in a single transaction. Re-running
// the same batch is a no-op apart from property refreshes.
func (r *Repository) LoadEnrichedPosts(ctx context.Context, posts []EnrichedPost) error {
	if len(posts) == 0 {
		return nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		UNWIND $posts AS post
		MERGE (p:Post {id: post.id})
		SET p.author = post.author,
		    p.content = post.content,
		    p.cleaned_content = post.cleaned_content,
		    p.timestamp = post.timestamp,
		    p.score = post.score,
		    p.forum = post.forum,
		    p.embedding = post.embedding

		FOREACH (_ IN CASE WHEN post.author <> '' THEN [1] ELSE [] END |
			MERGE (u:User {name: post.author})
			MERGE (u)-[:POSTED]->(p)
		)
		FOREACH (parentID IN CASE WHEN post.parent_id <> '' THEN [post.parent_id] ELSE [] END |
			MERGE (parent:Post {id: parentID})
			MERGE (p)-[:REPLY_TO]->(parent)
		)
		FOREACH (mention IN post.mentions |
			MERGE (e:Entity {name: mention.entity_name})
			ON CREATE SET e.id = randomUUID(), e.type = mention.entity_type
			MERGE (p)-[m:MENTIONS]->(e)
			ON CREATE SET m.sentences = [mention.sentence]
			ON MATCH SET m.sentences = CASE
				WHEN mention.sentence IN coalesce(m.sentences, []) THEN m.sentences
				ELSE coalesce(m.sentences, []) + mention.sentence END
		)
		FOREACH (stance IN post.stances |
			MERGE (e:Entity {name: stance.entity_name})
			ON CREATE SET e.id = randomUUID(), e.type = 'POLITICAL'
			MERGE (p)-[s:HAS_STANCE]->(e)
			SET s.stance = stance.stance, s.confidence = stance.confidence
		)
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"posts": encodeEnrichedPosts(posts),
	})
	if err != nil {
		return apperrors.NewStoreUnavailable("load enriched posts", err)
	}

	r.logger.Info("Loaded enriched post batch", zap.Int("posts", len(posts)))
	return nil
}

func encodeEnrichedPosts(posts []EnrichedPost) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(posts))
	for _, p := range posts {
		mentions := make([]map[string]interface{}, 0, len(p.Mentions))
		for _, m := range p.Mentions {
			mentions = append(mentions, map[string]interface{}{
				"entity_name": m.EntityName,
				"entity_type": m.EntityType,
				"sentence":    m.Sentence,
			})
		}
		stances := make([]map[string]interface{}, 0, len(p.Stances))
		for _, s := range p.Stances {
			stances = append(stances, map[string]interface{}{
				"entity_name": s.EntityName,
				"stance":      s.Stance,
				"confidence":  s.Confidence,
			})
		}
		out = append(out, map[string]interface{}{
			"id":              p.ID,
			"author":          p.Author,
			"content":         p.Content,
			"cleaned_content": p.CleanedContent,
			"timestamp":       p.Timestamp,
			"score":           p.Score,
			"forum":           p.Forum,
			"parent_id":       p.ParentID,
			"embedding":       p.Embedding,
			"mentions":        mentions,
			"stances":         stances,
		})
	}
	return out
}
