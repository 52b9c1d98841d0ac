package graph

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	apperrors "stancegraph/pkg/errors"
)

// These tests require a running Neo4j instance with the GDS plugin.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables.

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		password = "password"
	}
	return neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
}

func cleanupTestPosts(ctx context.Context, driver neo4j.DriverWithContext, prefix string) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, _ = session.Run(ctx,
		"MATCH (p:Post) WHERE p.id STARTS WITH $prefix DETACH DELETE p",
		map[string]interface{}{"prefix": prefix})
	_, _ = session.Run(ctx,
		"MATCH (e:Entity) WHERE e.name STARTS WITH $prefix AND NOT (e)--() DELETE e",
		map[string]interface{}{"prefix": prefix})
}

func TestRepository_LoadAndQueryStances(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver, 0.85)
	prefix := "it-" + time.Now().Format("20060102150405")
	defer cleanupTestPosts(ctx, driver, prefix)

	entityName := prefix + "-entity"
	posts := []EnrichedPost{
		{
			ID:        prefix + "-p1",
			Author:    prefix + "-alice",
			Content:   "test post one",
			Timestamp: time.Now().Unix(),
			Score:     3,
			Forum:     "test",
			Mentions:  []Mention{{EntityName: entityName, EntityType: "POLITICAL", Sentence: "test post one"}},
			Stances:   []StanceAssertion{{EntityName: entityName, Stance: StanceFavorable, Confidence: 0.95}},
		},
		{
			ID:        prefix + "-p2",
			Author:    prefix + "-bob",
			Content:   "test post two",
			Timestamp: time.Now().Unix(),
			Score:     1,
			Forum:     "test",
			Stances:   []StanceAssertion{{EntityName: entityName, Stance: StanceFavorable, Confidence: 0.40}},
		},
	}

	if err := repo.LoadEnrichedPosts(ctx, posts); err != nil {
		t.Fatalf("LoadEnrichedPosts failed: %v", err)
	}

	// Re-running the same batch must be idempotent
	if err := repo.LoadEnrichedPosts(ctx, posts); err != nil {
		t.Fatalf("Second LoadEnrichedPosts failed: %v", err)
	}

	triples, err := repo.QualifyingStances(ctx)
	if err != nil {
		t.Fatalf("QualifyingStances failed: %v", err)
	}

	// Only the 0.95 stance qualifies at threshold 0.85
	qualified := 0
	for _, tr := range triples {
		if tr.EntityName == entityName {
			qualified++
			if tr.User != prefix+"-alice" {
				t.Errorf("Expected qualifying stance from alice, got %s", tr.User)
			}
		}
	}
	if qualified != 1 {
		t.Errorf("Expected 1 qualifying stance for %s, got %d", entityName, qualified)
	}
}

func TestRepository_MergeEntityCluster(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver, 0.85)
	prefix := "it-" + time.Now().Format("20060102150405")
	defer cleanupTestPosts(ctx, driver, prefix)

	canonical := prefix + "-canonical"
	duplicate := prefix + "-duplicate"
	posts := []EnrichedPost{
		{
			ID:      prefix + "-p1",
			Author:  prefix + "-alice",
			Content: "one",
			Forum:   "test",
			Stances: []StanceAssertion{{EntityName: canonical, Stance: StanceFavorable, Confidence: 0.90}},
		},
		{
			ID:      prefix + "-p2",
			Author:  prefix + "-bob",
			Content: "two",
			Forum:   "test",
			Stances: []StanceAssertion{{EntityName: duplicate, Stance: StanceOpposed, Confidence: 0.92}},
		},
	}
	if err := repo.LoadEnrichedPosts(ctx, posts); err != nil {
		t.Fatalf("LoadEnrichedPosts failed: %v", err)
	}

	entities, err := repo.ListEntitiesWithDegree(ctx)
	if err != nil {
		t.Fatalf("ListEntitiesWithDegree failed: %v", err)
	}
	var canonicalID, duplicateID string
	for _, e := range entities {
		switch e.Name {
		case canonical:
			canonicalID = e.ID
		case duplicate:
			duplicateID = e.ID
		}
	}
	if canonicalID == "" || duplicateID == "" {
		t.Fatalf("Test entities not found after load")
	}

	if err := repo.MergeEntityCluster(ctx, canonicalID, []string{duplicateID}); err != nil {
		t.Fatalf("MergeEntityCluster failed: %v", err)
	}

	// The duplicate is gone and its stance edge points at the canonical entity
	entities, err = repo.ListEntitiesWithDegree(ctx)
	if err != nil {
		t.Fatalf("ListEntitiesWithDegree after merge failed: %v", err)
	}
	for _, e := range entities {
		if e.ID == duplicateID {
			t.Error("Duplicate entity still present after merge")
		}
		if e.ID == canonicalID && e.Degree != 2 {
			t.Errorf("Expected canonical degree 2 after merge, got %d", e.Degree)
		}
	}

	triples, err := repo.QualifyingStances(ctx)
	if err != nil {
		t.Fatalf("QualifyingStances failed: %v", err)
	}
	redirected := 0
	for _, tr := range triples {
		if tr.EntityID == canonicalID {
			redirected++
		}
	}
	if redirected != 2 {
		t.Errorf("Expected 2 qualifying stances on canonical entity, got %d", redirected)
	}
}

func TestRepository_ReplaceCommunities(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver, 0.85)
	prefix := "it-" + time.Now().Format("20060102150405")
	defer cleanupTestPosts(ctx, driver, prefix)
	defer func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx,
			"MATCH (c:Community) WHERE c.id STARTS WITH $prefix DETACH DELETE c",
			map[string]interface{}{"prefix": prefix})
	}()

	user := prefix + "-alice"
	if err := repo.LoadEnrichedPosts(ctx, []EnrichedPost{
		{ID: prefix + "-p1", Author: user, Content: "one", Forum: "test"},
	}); err != nil {
		t.Fatalf("LoadEnrichedPosts failed: %v", err)
	}

	communityID := fmt.Sprintf("%s-community-0", prefix)
	err = repo.ReplaceCommunities(ctx, []Membership{{ID: communityID, Members: []string{user}}})
	if err != nil {
		t.Fatalf("ReplaceCommunities failed: %v", err)
	}

	postsInCommunity, err := repo.PostsForCommunity(ctx, communityID)
	if err != nil {
		t.Fatalf("PostsForCommunity failed: %v", err)
	}
	if len(postsInCommunity) != 1 {
		t.Fatalf("Expected 1 post in community, got %d", len(postsInCommunity))
	}
	if postsInCommunity[0].ID != prefix+"-p1" {
		t.Errorf("Unexpected post in community: %s", postsInCommunity[0].ID)
	}
}

func TestRepository_StoreUnavailable(t *testing.T) {
	// Nothing listens on this port, so every query fails at the driver
	// and must surface as a store error the caller can classify.
	driver, err := neo4j.NewDriverWithContext("bolt://127.0.0.1:9", neo4j.NoAuth(),
		func(c *neo4j.Config) {
			c.SocketConnectTimeout = 500 * time.Millisecond
			c.ConnectionAcquisitionTimeout = time.Second
		})
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	ctx := context.Background()
	defer driver.Close(ctx)

	repo := NewRepository(driver, 0.85)
	_, err = repo.CountPosts(ctx)
	if err == nil {
		t.Fatal("Expected an error querying an unreachable store")
	}
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeStore) {
		t.Errorf("Expected a store error, got %v", err)
	}
	if !apperrors.IsRetryable(err) {
		t.Errorf("Expected store errors to be retryable, got %v", err)
	}
}
