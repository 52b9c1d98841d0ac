package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "stancegraph/pkg/errors"
	"stancegraph/pkg/logger"
)

// Repository handles all Neo4j database operations
type Repository struct {
	driver    neo4j.DriverWithContext
	threshold float64 // qualifying-stance confidence threshold
	logger    *zap.Logger
}

// NewRepository creates a new graph repository. The confidence threshold gates
// which HAS_STANCE edges participate in structural reasoning.
func NewRepository(driver neo4j.DriverWithContext, confidenceThreshold float64) *Repository {
	return &Repository{
		driver:    driver,
		threshold: confidenceThreshold,
		logger:    logger.Named("graph"),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// ConfidenceThreshold returns the configured qualifying-stance threshold
func (r *Repository) ConfidenceThreshold() float64 {
	return r.threshold
}

// EnsureSchema applies constraints and indexes. All statements are idempotent.
func (r *Repository) EnsureSchema(ctx context.Context, embeddingDims int) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := []string{
		"CREATE CONSTRAINT post_id_unique IF NOT EXISTS FOR (p:Post) REQUIRE p.id IS UNIQUE",
		"CREATE CONSTRAINT user_name_unique IF NOT EXISTS FOR (u:User) REQUIRE u.name IS UNIQUE",
		"CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE",
		"CREATE CONSTRAINT entity_name_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.name IS UNIQUE",
		"CREATE CONSTRAINT community_id_unique IF NOT EXISTS FOR (c:Community) REQUIRE c.id IS UNIQUE",
		"CREATE FULLTEXT INDEX entity_names_ft IF NOT EXISTS FOR (e:Entity) ON EACH [e.name]",
		fmt.Sprintf(`CREATE VECTOR INDEX post_embedding IF NOT EXISTS FOR (p:Post) ON (p.embedding)
			OPTIONS { indexConfig: { `+"`vector.dimensions`"+`: %d, `+"`vector.similarity_function`"+`: 'cosine' } }`, embeddingDims),
		fmt.Sprintf(`CREATE VECTOR INDEX community_embedding IF NOT EXISTS FOR (c:Community) ON (c.embedding)
			OPTIONS { indexConfig: { `+"`vector.dimensions`"+`: %d, `+"`vector.similarity_function`"+`: 'cosine' } }`, embeddingDims),
	}

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return apperrors.NewStoreUnavailable("ensure schema", err)
		}
	}

	r.logger.Info("Schema ensured", zap.Int("embedding_dims", embeddingDims))
	return nil
}

// Counts used by pipeline stage precondition checks

// CountPosts returns the number of Post nodes
func (r *Repository) CountPosts(ctx context.Context) (int64, error) {
	return r.count(ctx, "MATCH (p:Post) RETURN count(p) AS n")
}

// CountEntities returns the number of Entity nodes
func (r *Repository) CountEntities(ctx context.Context) (int64, error) {
	return r.count(ctx, "MATCH (e:Entity) RETURN count(e) AS n")
}

// CountCommunities returns the number of Community nodes
func (r *Repository) CountCommunities(ctx context.Context) (int64, error) {
	return r.count(ctx, "MATCH (c:Community) RETURN count(c) AS n")
}

// CountQualifyingStances returns the number of HAS_STANCE edges at or above
// the confidence threshold
func (r *Repository) CountQualifyingStances(ctx context.Context) (int64, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		"MATCH ()-[s:HAS_STANCE]->() WHERE s.confidence >= $threshold RETURN count(s) AS n",
		map[string]interface{}{"threshold": r.threshold})
	if err != nil {
		return 0, apperrors.NewStoreUnavailable("count qualifying stances", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, apperrors.NewStoreUnavailable("count qualifying stances", err)
	}
	return getInt64(record, "n", 0), nil
}

func (r *Repository) count(ctx context.Context, query string) (int64, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return 0, apperrors.NewStoreUnavailable("count query", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, apperrors.NewStoreUnavailable("count query", err)
	}
	return getInt64(record, "n", 0), nil
}

// Record helpers

func getString(record *neo4j.Record, key string, defaultValue string) string {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	if str, ok := val.(string); ok {
		return str
	}
	return defaultValue
}

func getInt64(record *neo4j.Record, key string, defaultValue int64) int64 {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return defaultValue
}

func getFloat64(record *neo4j.Record, key string, defaultValue float64) float64 {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return defaultValue
}

func getFloatSlice(record *neo4j.Record, key string) []float64 {
	val, ok := record.Get(key)
	if !ok {
		return nil
	}
	list, ok := val.([]interface{})
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(list))
	for _, item := range list {
		if f, ok := item.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

func getStringSlice(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok {
		return nil
	}
	list, ok := val.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
