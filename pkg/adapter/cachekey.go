package adapter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// keyPrefix namespaces query-result entries in the shared cache.
const keyPrefix = "query:"

// CacheKey derives a deterministic cache key from a test name and its bound
// parameters. encoding/json marshals map keys in sorted order, so two calls
// with the same parameters in any order canonicalize to the same bytes.
func CacheKey(testName string, params map[string]any) string {
	payload, err := json.Marshal(struct {
		Name   string         `json:"name"`
		Params map[string]any `json:"params"`
	}{
		Name:   testName,
		Params: params,
	})
	if err != nil {
		// Marshaling a string and a map of JSON-compatible values cannot
		// fail; fall back to the bare name rather than panic mid-run.
		payload = []byte(testName)
	}

	sum := sha256.Sum256(payload)

	return keyPrefix + hex.EncodeToString(sum[:])
}
