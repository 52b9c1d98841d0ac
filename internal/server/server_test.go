package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stancegraph/internal/graph"
	"stancegraph/internal/orchestrator"
	"stancegraph/internal/pipeline"
	apperrors "stancegraph/pkg/errors"
)

type fakeOrchestrator struct {
	result *orchestrator.Result
	err    error
}

func (f *fakeOrchestrator) Answer(ctx context.Context, query string) (*orchestrator.Result, error) {
	return f.result, f.err
}

type fakeCommunities struct {
	communities []graph.Community
	err         error
}

func (f *fakeCommunities) ListCommunities(ctx context.Context) ([]graph.Community, error) {
	return f.communities, f.err
}

type fakeAnalysis struct {
	results []pipeline.StageResult
	err     error
}

func (f *fakeAnalysis) Run(ctx context.Context) ([]pipeline.StageResult, error) {
	return f.results, f.err
}

func newTestRouter(orc QueryOrchestrator, comm CommunityReader, analysis AnalysisRunner) http.Handler {
	return NewRouter(Deps{
		Orchestrator: orc,
		Communities:  comm,
		Analysis:     analysis,
		Logger:       zap.NewNop(),
		Production:   true,
	})
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeOrchestrator{}, &fakeCommunities{}, &fakeAnalysis{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestQuery_OK(t *testing.T) {
	orc := &fakeOrchestrator{result: &orchestrator.Result{
		Answer:    "the answer",
		MatchType: orchestrator.MatchStructural,
	}}
	router := newTestRouter(orc, &fakeCommunities{}, &fakeAnalysis{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": "What about Biden?"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"match_type":"structural"`)
	assert.Contains(t, w.Body.String(), "the answer")
}

func TestQuery_MissingBody(t *testing.T) {
	router := newTestRouter(&fakeOrchestrator{}, &fakeCommunities{}, &fakeAnalysis{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuery_GenerationFailureReturnsSources(t *testing.T) {
	orc := &fakeOrchestrator{
		result: &orchestrator.Result{
			MatchType:        orchestrator.MatchStructural,
			Sources:          []graph.ScoredPost{{Post: graph.Post{ID: "p1"}, Similarity: 0.9}},
			GenerationFailed: true,
		},
		err: apperrors.NewOracleUnavailable("generation", errors.New("503")),
	}
	router := newTestRouter(orc, &fakeCommunities{}, &fakeAnalysis{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": "q"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"p1"`)
}

func TestQuery_StoreUnavailable(t *testing.T) {
	orc := &fakeOrchestrator{err: fmt.Errorf("structural retrieval failed: %w",
		apperrors.NewStoreUnavailable("structural retrieval", errors.New("connection refused")))}
	router := newTestRouter(orc, &fakeCommunities{}, &fakeAnalysis{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": "q"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "graph store unavailable")
}

func TestCommunities_StoreUnavailable(t *testing.T) {
	comm := &fakeCommunities{err: apperrors.NewStoreUnavailable("list communities", errors.New("down"))}
	router := newTestRouter(&fakeOrchestrator{}, comm, &fakeAnalysis{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/communities", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCommunities_OK(t *testing.T) {
	comm := &fakeCommunities{communities: []graph.Community{
		{ID: "community-0", Size: 12, Summary: "a bloc"},
	}}
	router := newTestRouter(&fakeOrchestrator{}, comm, &fakeAnalysis{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/communities", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "community-0")
}

func TestCommunities_EmptyIsArray(t *testing.T) {
	router := newTestRouter(&fakeOrchestrator{}, &fakeCommunities{}, &fakeAnalysis{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/communities", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"communities":[]`)
}

func TestAnalysis_Conflict(t *testing.T) {
	analysis := &fakeAnalysis{err: errors.New("an analysis run is already in progress")}
	router := newTestRouter(&fakeOrchestrator{}, &fakeCommunities{}, analysis)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analysis/run", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAnalysis_PreconditionFailure(t *testing.T) {
	analysis := &fakeAnalysis{err: apperrors.NewStagePrecondition("alliance-projection", "no stances")}
	router := newTestRouter(&fakeOrchestrator{}, &fakeCommunities{}, analysis)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analysis/run", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAnalysis_OK(t *testing.T) {
	analysis := &fakeAnalysis{results: []pipeline.StageResult{{Stage: "entity-resolution"}}}
	router := newTestRouter(&fakeOrchestrator{}, &fakeCommunities{}, analysis)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analysis/run", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "entity-resolution")
}
