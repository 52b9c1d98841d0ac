package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stancegraph/internal/graph"
)

func entity(id, name string, degree int64) graph.EntityDegree {
	return graph.EntityDegree{
		Entity: graph.Entity{ID: id, Name: name, Type: "POLITICAL"},
		Degree: degree,
	}
}

func TestNameSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"Joe Biden", "joe biden", 1.0, 1.0},
		{"  Joe   Biden ", "Joe Biden", 1.0, 1.0},
		{"Biden", "Joe Biden", 1.0, 1.0},          // token subset
		{"Trump", "Donald Trump", 1.0, 1.0},       // token subset
		{"Biden's", "Biden", 1.0, 1.0},            // punctuation stripped
		{"Democratic Party", "Republican Party", 0.0, 0.5},
		{"Obamacare", "Obama", 0.0, 0.7}, // char containment only, low ratio
		{"", "Biden", 0.0, 0.0},
		{"NATO", "EU", 0.0, 0.0},
	}
	for _, tc := range cases {
		got := NameSimilarity(tc.a, tc.b)
		assert.GreaterOrEqual(t, got, tc.min, "%q vs %q", tc.a, tc.b)
		assert.LessOrEqual(t, got, tc.max, "%q vs %q", tc.a, tc.b)
		assert.Equal(t, got, NameSimilarity(tc.b, tc.a), "similarity must be symmetric for %q/%q", tc.a, tc.b)
	}
}

func TestPlan_ClustersDuplicates(t *testing.T) {
	entities := []graph.EntityDegree{
		entity("e1", "Joe Biden", 12),
		entity("e2", "joe biden", 3),
		entity("e3", "Biden", 7),
		entity("e4", "Republican Party", 5),
	}

	plans, conflicts := Plan(entities, 0.85, nil)
	require.Empty(t, conflicts)
	require.Len(t, plans, 1)

	// Highest degree wins canonical
	assert.Equal(t, "e1", plans[0].CanonicalID)
	assert.ElementsMatch(t, []string{"e2", "e3"}, plans[0].LoserIDs)
}

func TestPlan_CanonicalTieBreaksOnID(t *testing.T) {
	entities := []graph.EntityDegree{
		entity("e9", "Kamala Harris", 4),
		entity("e2", "kamala harris", 4),
	}
	plans, _ := Plan(entities, 0.85, nil)
	require.Len(t, plans, 1)
	assert.Equal(t, "e2", plans[0].CanonicalID)
	assert.Equal(t, []string{"e9"}, plans[0].LoserIDs)
}

func TestPlan_TransitiveClosure(t *testing.T) {
	// A~B and B~C pull all three into one cluster even if A and C alone
	// would not pass the threshold.
	entities := []graph.EntityDegree{
		entity("e1", "Donald Trump", 1),
		entity("e2", "Trump", 1),
		entity("e3", "Donald J Trump", 9),
	}
	plans, _ := Plan(entities, 0.85, nil)
	require.Len(t, plans, 1)
	assert.Equal(t, "e3", plans[0].CanonicalID)
	assert.Len(t, plans[0].LoserIDs, 2)
}

func TestPlan_OverrideBlocksMerge(t *testing.T) {
	overrides := &Overrides{}
	overrides.Add("Biden", "Joe Biden")

	entities := []graph.EntityDegree{
		entity("e1", "Joe Biden", 10),
		entity("e2", "Biden", 2),
	}
	plans, conflicts := Plan(entities, 0.85, overrides)
	assert.Empty(t, plans)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "Joe Biden", conflicts[0].EntityA)
	assert.Equal(t, "Biden", conflicts[0].EntityB)
}

func TestPlan_NoDuplicates(t *testing.T) {
	entities := []graph.EntityDegree{
		entity("e1", "NATO", 3),
		entity("e2", "European Union", 5),
	}
	plans, conflicts := Plan(entities, 0.85, nil)
	assert.Empty(t, plans)
	assert.Empty(t, conflicts)
}

type mockStore struct {
	entities []graph.EntityDegree
	merges   [][]string // canonical + losers per call
}

func (m *mockStore) ListEntitiesWithDegree(ctx context.Context) ([]graph.EntityDegree, error) {
	return m.entities, nil
}

func (m *mockStore) MergeEntityCluster(ctx context.Context, canonicalID string, loserIDs []string) error {
	m.merges = append(m.merges, append([]string{canonicalID}, loserIDs...))

	// Simulate the store: losers disappear, canonical survives
	var kept []graph.EntityDegree
	losers := make(map[string]bool)
	for _, id := range loserIDs {
		losers[id] = true
	}
	for _, e := range m.entities {
		if !losers[e.ID] {
			kept = append(kept, e)
		}
	}
	m.entities = kept
	return nil
}

func TestResolve_MergesAndReports(t *testing.T) {
	store := &mockStore{entities: []graph.EntityDegree{
		entity("e1", "Joe Biden", 12),
		entity("e2", "Biden", 3),
		entity("e3", "Republican Party", 5),
	}}
	r := NewResolver(store, 0.85, nil)

	report, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Clusters)
	assert.Equal(t, 1, report.Merged)
	assert.Empty(t, report.Conflicts)
	require.Len(t, store.merges, 1)
	assert.Equal(t, []string{"e1", "e2"}, store.merges[0])
}

func TestResolve_Idempotent(t *testing.T) {
	store := &mockStore{entities: []graph.EntityDegree{
		entity("e1", "Joe Biden", 12),
		entity("e2", "Biden", 3),
		entity("e3", "biden", 1),
	}}
	r := NewResolver(store, 0.85, nil)

	first, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Merged)

	// A second run over the already-resolved graph plans nothing
	second, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Clusters)
	assert.Zero(t, second.Merged)
}
