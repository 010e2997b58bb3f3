package jobs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentReferencesQuery(t *testing.T) {
	content := []byte(`{
		"version": "6.7.0",
		"definition": {
			"queries": [
				{"id": "q1", "type": "preset", "key": "orders"},
				{"id": "q2", "type": "upload", "key": "events"}
			],
			"sqlSnippets": []
		},
		"panels": [{"title": "orders by region"}]
	}`)

	require.True(t, contentReferencesQuery(content, "preset", "orders"))
	require.True(t, contentReferencesQuery(content, "upload", "events"))

	// Same key under a different datasource type is not a reference.
	require.False(t, contentReferencesQuery(content, "upload", "orders"))
	require.False(t, contentReferencesQuery(content, "preset", "events"))

	// The key showing up elsewhere in the document does not count; only
	// definition.queries entries are inspected.
	require.False(t, contentReferencesQuery(content, "preset", "orders by region"))
}

func TestContentReferencesQueryIgnoresMalformedDocuments(t *testing.T) {
	require.False(t, contentReferencesQuery([]byte(`{}`), "preset", "orders"))
	require.False(t, contentReferencesQuery([]byte(`{"definition":{"queries":"oops"}}`), "preset", "orders"))
	require.False(t, contentReferencesQuery([]byte(`{"definition":{"queries":[42, "str"]}}`), "preset", "orders"))
	require.False(t, contentReferencesQuery([]byte(`not json`), "preset", "orders"))
}
