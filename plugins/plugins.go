// Package plugins holds the config migrators of the built-in visualization
// plugins. Each plugin declares its current schema version and the ordered
// steps that bring older panel configs up to it; the set is fixed at compile
// time.
package plugins

import (
	"fmt"

	"github.com/vistable/vistable/migration"
)

// Migrators maps a visualization type to its config migrator.
var Migrators = map[string]*migration.VersionedMigrator{
	"table":   Table,
	"boxplot": Boxplot,
}

// Table migrates table panel configs.
var Table = migration.MustVersionedMigrator(3, []migration.VersionedStep{
	{Target: 1, Fn: tableV1},
	{Target: 2, Fn: tableV2},
	{Target: 3, Fn: tableV3},
})

// Boxplot migrates boxplot chart configs.
var Boxplot = migration.MustVersionedMigrator(4, []migration.VersionedStep{
	{Target: 1, Fn: boxplotV1},
	{Target: 2, Fn: hoistVariables(2)},
	{Target: 3, Fn: boxplotV3},
	{Target: 4, Fn: boxplotV4},
})

func cloneConfig(c map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// hoistVariables builds the step that moves the legacy config-level template
// variables onto the owning panel. Several plugins went through this same
// transition, at different schema versions.
func hoistVariables(target int) func(migration.Envelope, *migration.Env) (migration.Envelope, error) {
	return func(doc migration.Envelope, env *migration.Env) (migration.Envelope, error) {
		cfg := cloneConfig(doc.Config)
		if raw, ok := cfg["variables"].([]interface{}); ok {
			for _, rv := range raw {
				m, ok := rv.(map[string]interface{})
				if !ok {
					continue
				}
				v := migration.TemplateVariable{}
				v.Name, _ = m["name"].(string)
				v.DefaultValue, _ = m["default_value"].(string)
				if env != nil && env.Panel != nil {
					env.Panel.AddVariable(v)
				}
			}
		}
		delete(cfg, "variables")
		return migration.Envelope{Version: target, Config: cfg}, nil
	}
}

func tableV1(doc migration.Envelope, _ *migration.Env) (migration.Envelope, error) {
	cfg := cloneConfig(doc.Config)
	if _, ok := cfg["columns"]; !ok {
		cfg["columns"] = []interface{}{}
	}
	return migration.Envelope{Version: 1, Config: cfg}, nil
}

func tableV2(doc migration.Envelope, env *migration.Env) (migration.Envelope, error) {
	return hoistVariables(2)(doc, env)
}

func tableV3(doc migration.Envelope, _ *migration.Env) (migration.Envelope, error) {
	cfg := cloneConfig(doc.Config)
	cols, _ := cfg["columns"].([]interface{})
	out := make([]interface{}, 0, len(cols))
	for _, rc := range cols {
		col, ok := rc.(map[string]interface{})
		if !ok {
			out = append(out, rc)
			continue
		}
		c := cloneConfig(col)
		if _, ok := c["align"]; !ok {
			c["align"] = "left"
		}
		out = append(out, c)
	}
	cfg["columns"] = out
	return migration.Envelope{Version: 3, Config: cfg}, nil
}

func boxplotV1(doc migration.Envelope, _ *migration.Env) (migration.Envelope, error) {
	cfg := cloneConfig(doc.Config)
	if _, ok := cfg["y_axis"]; !ok {
		cfg["y_axis"] = map[string]interface{}{"name": ""}
	}
	return migration.Envelope{Version: 1, Config: cfg}, nil
}

func boxplotV3(doc migration.Envelope, _ *migration.Env) (migration.Envelope, error) {
	cfg := cloneConfig(doc.Config)
	y, ok := cfg["y_axis"].(map[string]interface{})
	if !ok {
		return migration.Envelope{}, fmt.Errorf("y_axis config missing")
	}
	y = cloneConfig(y)
	if _, ok := y["label_formatter"]; !ok {
		y["label_formatter"] = map[string]interface{}{"output": "number", "mantissa": 0}
	}
	cfg["y_axis"] = y
	return migration.Envelope{Version: 3, Config: cfg}, nil
}

func boxplotV4(doc migration.Envelope, _ *migration.Env) (migration.Envelope, error) {
	cfg := cloneConfig(doc.Config)
	x, ok := cfg["x_axis"].(map[string]interface{})
	if !ok {
		return migration.Envelope{}, fmt.Errorf("x_axis config missing")
	}
	x = cloneConfig(x)
	if _, ok := x["axisLabel"]; !ok {
		x["axisLabel"] = map[string]interface{}{
			"rotate":    float64(0),
			"formatter": map[string]interface{}{},
		}
	}
	cfg["x_axis"] = x
	return migration.Envelope{Version: 4, Config: cfg}, nil
}
