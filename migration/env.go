package migration

// TemplateVariable is a named variable a panel exposes to its
// visualization. Some historical config migrations hoist variables out of
// the plugin config onto the owning panel.
type TemplateVariable struct {
	Name         string `json:"name"`
	DefaultValue string `json:"default_value,omitempty"`
}

// PanelModel is the slice of the owning panel a plugin-scoped migration may
// touch.
type PanelModel interface {
	Variables() []TemplateVariable
	AddVariable(v TemplateVariable)
}

// Env is the side-channel of collaborators a migration step may read or
// write beyond the document itself. Steps must be total over documents of
// their source version; any external effect through Env happens exactly
// once per document per version transition.
type Env struct {
	// Panel is the owning panel for plugin-scoped config migrations. Nil
	// for dashboard-level steps that never reach into a panel.
	Panel PanelModel
}
