package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perflab/querybench/pkg/backend"
	"github.com/perflab/querybench/pkg/config"
)

func newGraphQLClient(t *testing.T, endpoint string) *backend.GraphQLClient {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return backend.NewGraphQL(log, &config.GraphQLConfig{
		Endpoint:    endpoint,
		AdminSecret: "hush",
		Timeout:     5 * time.Second,
	})
}

func TestGraphQLExecute(t *testing.T) {
	var gotSecret string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("x-hasura-admin-secret")

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "customers")
		assert.Equal(t, "USA", req.Variables["country"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"customers": []any{map[string]any{"customer_id": "ALFKI"}},
			},
		})
	}))
	defer srv.Close()

	c := newGraphQLClient(t, srv.URL)

	doc, err := c.Execute(context.Background(),
		"query ($country: String!) { customers(where: {country: {_eq: $country}}) { customer_id } }",
		map[string]any{"country": "USA"},
	)
	require.NoError(t, err)

	assert.Equal(t, "hush", gotSecret)
	assert.Contains(t, doc, "customers")
}

func TestGraphQLExecuteErrorDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []any{map[string]any{"message": "field not found"}},
		})
	}))
	defer srv.Close()

	c := newGraphQLClient(t, srv.URL)

	_, err := c.Execute(context.Background(), "query { nope }", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrMalformedResponse)
}

func TestGraphQLExecuteNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newGraphQLClient(t, srv.URL)

	_, err := c.Execute(context.Background(), "query { customers { customer_id } }", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrMalformedResponse)
}

func TestGraphQLExecuteInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := newGraphQLClient(t, srv.URL)

	_, err := c.Execute(context.Background(), "query { customers { customer_id } }", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrMalformedResponse)
}

func TestGraphQLExecuteUnreachable(t *testing.T) {
	c := newGraphQLClient(t, "http://127.0.0.1:1/v1/graphql")

	_, err := c.Execute(context.Background(), "query { customers { customer_id } }", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, backend.ErrMalformedResponse)
}
