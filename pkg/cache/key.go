package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies an aggregation snapshot.
type Key struct {
	// Endpoint is the upstream listing path (e.g., "/v1/properties")
	Endpoint string

	// Query holds the filters replayed on every page
	Query url.Values

	// PageSize is the clamped page size the listing was fetched with
	PageSize int
}

// String generates a deterministic cache key string.
// Format: listing:endpoint:query1=val1:query2=a,b:size=20
// Values are query-escaped so separators inside a value stay distinct.
//
// Example:
//
//	listing:v1/properties:search[operation_type]=sale:size=50
func (k Key) String() string {
	parts := []string{"listing"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Query) > 0 {
		queryKeys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := make([]string, 0, len(k.Query[key]))
			for _, v := range k.Query[key] {
				values = append(values, url.QueryEscape(v))
			}
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	if k.PageSize > 0 {
		parts = append(parts, fmt.Sprintf("size=%d", k.PageSize))
	}

	return strings.Join(parts, ":")
}
