package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/perflab/querybench/pkg/adapter"
	"github.com/perflab/querybench/pkg/backend"
	"github.com/perflab/querybench/pkg/bench"
	"github.com/perflab/querybench/pkg/catalog"
	"github.com/perflab/querybench/pkg/config"
	"github.com/perflab/querybench/pkg/orchestrator"
	"github.com/perflab/querybench/pkg/store"
	"github.com/perflab/querybench/pkg/telemetry"
)

type fakeRelational struct{ rows int }

func (f *fakeRelational) Query(
	_ context.Context, _ string, _ map[string]any,
) (int, error) {
	return f.rows, nil
}

type fakeGraphQL struct{ doc backend.Document }

func (f *fakeGraphQL) Execute(
	_ context.Context, _ string, _ map[string]any,
) (backend.Document, error) {
	return f.doc, nil
}

func newTestServer(t *testing.T, cfg *config.ServerConfig) (*server, store.Store) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	st := store.NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	})
	require.NoError(t, st.Start(context.Background()))

	t.Cleanup(func() {
		require.NoError(t, st.Stop())
	})

	cat := catalog.New(log)
	require.NoError(t, catalog.RegisterDefaults(cat))

	direct := adapter.NewDirect(log, &fakeRelational{rows: 1})
	mediated := adapter.NewMediated(log, &fakeGraphQL{doc: backend.Document{"rows": 1}})
	sel := adapter.NewSelector(direct, mediated, nil)

	orch := orchestrator.New(log, sel, st, nil)

	if cfg == nil {
		cfg = &config.ServerConfig{Listen: ":0"}
	}

	srv := &server{
		log:      log,
		cfg:      cfg,
		defaults: &config.BenchmarkConfig{Concurrency: 2, Iterations: 3},
		catalog:  cat,
		orch:     orch,
		store:    st,
		metrics:  telemetry.New(),
	}

	return srv, st
}

func doRequest(
	t *testing.T, srv *server, method, path string, body any,
) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()

	srv.buildRouter().ServeHTTP(rec, req)

	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestListTests(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/tests", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var defs []bench.TestDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defs))
	assert.Len(t, defs, 5)
}

func TestGetTestNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/tests/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartRunAndFetchResult(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/runs", runRequest{
		Test:  "simple_select",
		Paths: []string{"direct"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var result bench.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	// Defaults: 2 users x 3 iterations.
	assert.Equal(t, 6, result.Summaries[bench.PathDirect].Count)
	assert.NotZero(t, result.RunID)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/results/simple_select", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/runs/simple_select", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartRunUnknownTest(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/runs", runRequest{
		Test: "no_such_test",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartRunInvalidConcurrency(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/runs", runRequest{
		Test:        "simple_select",
		Paths:       []string{"direct"},
		Concurrency: -1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartRunInvalidPath(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/runs", runRequest{
		Test:  "simple_select",
		Paths: []string{"sideways"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLatestResultMissing(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/results/simple_select", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompareEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/runs", runRequest{
		Test:  "simple_select",
		Paths: []string{"direct", "mediated"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet,
		"/api/v1/compare/simple_select?base=direct&target=mediated", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var c store.Comparison
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, bench.PathDirect, c.Base)
}

func TestCompareInsufficientData(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet,
		"/api/v1/compare/simple_select", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword(
		[]byte("hunter2"), bcrypt.MinCost,
	)
	require.NoError(t, err)

	srv, _ := newTestServer(t, &config.ServerConfig{
		Listen: ":0",
		Auth: config.BasicAuthConfig{
			Enabled: true,
			Users: []config.BasicAuthUser{
				{Username: "alice", Password: string(hash)},
			},
		},
	})

	// Health stays public.
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/tests", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tests", nil)
	req.SetBasicAuth("alice", "hunter2")

	authed := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
