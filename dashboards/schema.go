package dashboards

import (
	"github.com/google/uuid"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/migration"
	"github.com/vistable/vistable/plugins"
)

// DefaultLedger is the content schema history. Append-only; a release that
// changes the content shape appends a version here and registers its step in
// DefaultRegistry.
var DefaultLedger = migration.NewLedger(
	"2.0.0",
	"2.1.0",
	"4.5.0",
	"4.10.0",
	"5.9.0",
	"6.7.0",
)

// DefaultRegistry binds the content migration steps to DefaultLedger.
func DefaultRegistry() *migration.Registry {
	r := migration.NewRegistry(DefaultLedger)
	r.MustRegister("2.0.0", stepBaseline)
	r.MustRegister("2.1.0", stepMockContext)
	r.MustRegister("4.5.0", stepQueryIDs)
	r.MustRegister("4.10.0", stepPanelQueryIDs)
	r.MustRegister("5.9.0", stepPluginConfigs)
	r.MustRegister("6.7.0", stepFilterKeys)
	return r
}

func definition(doc vistable.DashboardContent) map[string]interface{} {
	def, ok := doc["definition"].(map[string]interface{})
	if !ok {
		def = map[string]interface{}{}
		doc["definition"] = def
	}
	return def
}

func sliceOf(m map[string]interface{}, key string) []interface{} {
	s, ok := m[key].([]interface{})
	if !ok {
		s = []interface{}{}
		m[key] = s
	}
	return s
}

// stepBaseline establishes the versioned document shape: a definition object
// holding the query and snippet lists.
func stepBaseline(doc vistable.DashboardContent, _ *migration.Env) (vistable.DashboardContent, error) {
	out := doc.Clone()
	if out == nil {
		out = vistable.DashboardContent{}
	}
	def := definition(out)
	sliceOf(def, "queries")
	sliceOf(def, "sqlSnippets")
	out["version"] = "2.0.0"
	return out, nil
}

func stepMockContext(doc vistable.DashboardContent, _ *migration.Env) (vistable.DashboardContent, error) {
	out := doc.Clone()
	def := definition(out)
	if _, ok := def["mock_context"].(map[string]interface{}); !ok {
		def["mock_context"] = map[string]interface{}{}
	}
	out["version"] = "2.1.0"
	return out, nil
}

// stepQueryIDs gives every query a stable id; before this version queries
// were addressed by list position.
func stepQueryIDs(doc vistable.DashboardContent, _ *migration.Env) (vistable.DashboardContent, error) {
	out := doc.Clone()
	def := definition(out)
	for _, rq := range sliceOf(def, "queries") {
		q, ok := rq.(map[string]interface{})
		if !ok {
			continue
		}
		if id, _ := q["id"].(string); id == "" {
			q["id"] = uuid.NewString()
		}
	}
	out["version"] = "4.5.0"
	return out, nil
}

// stepPanelQueryIDs folds the legacy singular panel.queryID into the
// queryIDs list.
func stepPanelQueryIDs(doc vistable.DashboardContent, _ *migration.Env) (vistable.DashboardContent, error) {
	out := doc.Clone()
	def := definition(out)
	for _, rp := range sliceOf(def, "panels") {
		p, ok := rp.(map[string]interface{})
		if !ok {
			continue
		}
		if _, ok := p["queryIDs"].([]interface{}); ok {
			continue
		}
		ids := []interface{}{}
		if id, _ := p["queryID"].(string); id != "" {
			ids = append(ids, id)
		}
		p["queryIDs"] = ids
		delete(p, "queryID")
	}
	out["version"] = "4.10.0"
	return out, nil
}

// contentPanel adapts a panel object to the plugin migration side-channel.
type contentPanel struct {
	panel map[string]interface{}
}

func (p contentPanel) Variables() []migration.TemplateVariable {
	raw, _ := p.panel["variables"].([]interface{})
	out := make([]migration.TemplateVariable, 0, len(raw))
	for _, rv := range raw {
		m, ok := rv.(map[string]interface{})
		if !ok {
			continue
		}
		v := migration.TemplateVariable{}
		v.Name, _ = m["name"].(string)
		v.DefaultValue, _ = m["default_value"].(string)
		out = append(out, v)
	}
	return out
}

func (p contentPanel) AddVariable(v migration.TemplateVariable) {
	raw, _ := p.panel["variables"].([]interface{})
	entry := map[string]interface{}{"name": v.Name}
	if v.DefaultValue != "" {
		entry["default_value"] = v.DefaultValue
	}
	p.panel["variables"] = append(raw, entry)
}

// stepPluginConfigs brings every panel's visualization config up to its
// plugin's current schema. Panels of unknown visualization types pass
// through untouched.
func stepPluginConfigs(doc vistable.DashboardContent, _ *migration.Env) (vistable.DashboardContent, error) {
	out := doc.Clone()
	def := definition(out)
	for _, rp := range sliceOf(def, "panels") {
		p, ok := rp.(map[string]interface{})
		if !ok {
			continue
		}
		viz, ok := p["viz"].(map[string]interface{})
		if !ok {
			continue
		}
		vizType, _ := viz["type"].(string)
		m, ok := plugins.Migrators[vizType]
		if !ok {
			continue
		}

		env := &migration.Env{Panel: contentPanel{panel: p}}
		envelope := migration.Envelope{Config: map[string]interface{}{}}
		if v, ok := viz["version"].(float64); ok {
			envelope.Version = int(v)
		}
		if cfg, ok := viz["config"].(map[string]interface{}); ok {
			envelope.Config = cfg
		}

		migrated, err := m.Migrate(envelope, env)
		if err != nil {
			return nil, err
		}
		viz["version"] = float64(migrated.Version)
		viz["config"] = migrated.Config
	}
	out["version"] = "5.9.0"
	return out, nil
}

func stepFilterKeys(doc vistable.DashboardContent, _ *migration.Env) (vistable.DashboardContent, error) {
	out := doc.Clone()
	def := definition(out)
	for _, rf := range sliceOf(def, "filters") {
		f, ok := rf.(map[string]interface{})
		if !ok {
			continue
		}
		if key, _ := f["key"].(string); key == "" {
			f["key"], _ = f["id"].(string)
		}
	}
	out["version"] = "6.7.0"
	return out, nil
}
