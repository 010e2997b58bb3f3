package dashboards

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/migration"
)

func TestDefaultRegistryCoversEveryLedgerVersion(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	current := ""
	for _, want := range DefaultLedger.Versions() {
		target, fn, ok, err := r.NextStep(current)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, target)
		require.NotNil(t, fn)
		current = target
	}
	_, _, ok, err := r.NextStep(current)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLegacyDocumentMigratesToLatest(t *testing.T) {
	t.Parallel()

	runner := migration.NewRunner(DefaultRegistry(), zaptest.NewLogger(t))

	doc := vistable.DashboardContent{
		"definition": map[string]interface{}{
			"queries": []interface{}{
				map[string]interface{}{"type": "postgresql", "key": "preset"},
			},
			"panels": []interface{}{
				map[string]interface{}{
					"title":   "revenue",
					"queryID": "q1",
					"viz": map[string]interface{}{
						"type":    "table",
						"version": float64(0),
						"config": map[string]interface{}{
							"variables": []interface{}{
								map[string]interface{}{"name": "threshold", "default_value": "10"},
							},
						},
					},
				},
			},
		},
	}

	res, err := runner.Migrate(doc, &migration.Env{})
	require.NoError(t, err)
	require.Equal(t, DefaultLedger.Versions(), res.Applied)
	require.Equal(t, DefaultLedger.Latest(), res.Doc.Version())

	def := res.Doc["definition"].(map[string]interface{})

	// queries gained stable ids
	q := def["queries"].([]interface{})[0].(map[string]interface{})
	require.NotEmpty(t, q["id"])

	panel := def["panels"].([]interface{})[0].(map[string]interface{})

	// the singular queryID was folded into the list form
	require.Equal(t, []interface{}{"q1"}, panel["queryIDs"])
	require.NotContains(t, panel, "queryID")

	// the table plugin config reached its current schema and its legacy
	// variables moved onto the panel
	viz := panel["viz"].(map[string]interface{})
	require.Equal(t, float64(3), viz["version"])
	cfg := viz["config"].(map[string]interface{})
	require.NotContains(t, cfg, "variables")
	vars := panel["variables"].([]interface{})
	require.Len(t, vars, 1)
	require.Equal(t, "threshold", vars[0].(map[string]interface{})["name"])
}

func TestUnknownVizTypesPassThrough(t *testing.T) {
	t.Parallel()

	doc := vistable.DashboardContent{
		"version": "4.10.0",
		"definition": map[string]interface{}{
			"panels": []interface{}{
				map[string]interface{}{
					"viz": map[string]interface{}{
						"type":    "sunburst",
						"version": float64(1),
						"config":  map[string]interface{}{"keep": "me"},
					},
				},
			},
		},
	}

	out, err := stepPluginConfigs(doc, &migration.Env{})
	require.NoError(t, err)

	viz := out["definition"].(map[string]interface{})["panels"].([]interface{})[0].(map[string]interface{})["viz"].(map[string]interface{})
	require.Equal(t, float64(1), viz["version"])
	require.Equal(t, map[string]interface{}{"keep": "me"}, viz["config"])
}
