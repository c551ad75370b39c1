package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/perflab/querybench/pkg/config"
)

// adminSecretHeader carries the GraphQL engine admin secret, Hasura-style.
const adminSecretHeader = "x-hasura-admin-secret"

// GraphQLClient executes operations against a GraphQL endpoint over HTTP.
// Protocol parsing and translation overhead is part of what the mediated
// path measures, so nothing is subtracted from the round trip.
type GraphQLClient struct {
	log    logrus.FieldLogger
	cfg    *config.GraphQLConfig
	client *http.Client
}

// Compile-time interface check.
var _ GraphQL = (*GraphQLClient)(nil)

// NewGraphQL creates a GraphQL backend client.
func NewGraphQL(log logrus.FieldLogger, cfg *config.GraphQLConfig) *GraphQLClient {
	return &GraphQLClient{
		log: log.WithField("component", "graphql"),
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// graphqlRequest is the standard GraphQL HTTP request body.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL HTTP response body.
type graphqlResponse struct {
	Data   Document       `json:"data"`
	Errors []graphqlError `json:"errors,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// Execute posts the operation and decodes the response document.
func (c *GraphQLClient) Execute(
	ctx context.Context, operation string, variables map[string]any,
) (Document, error) {
	payload, err := json.Marshal(graphqlRequest{
		Query:     operation,
		Variables: variables,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.cfg.AdminSecret != "" {
		req.Header.Set(adminSecretHeader, c.cfg.AdminSecret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"unexpected status %d: %w", resp.StatusCode, ErrMalformedResponse,
		)
	}

	var decoded graphqlResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", ErrMalformedResponse)
	}

	// A 200 with a GraphQL error document still counts as a failed call.
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf(
			"graphql error: %s: %w", decoded.Errors[0].Message, ErrMalformedResponse,
		)
	}

	return decoded.Data, nil
}
