package migration

import (
	"fmt"

	"github.com/vistable/vistable/kit/errors"
)

// Envelope is the {version, config} document a visualization plugin stores
// on each panel.
type Envelope struct {
	Version int                    `json:"version"`
	Config  map[string]interface{} `json:"config"`
}

// VersionedStep advances a plugin config envelope to exactly Target.
type VersionedStep struct {
	Target int
	Fn     func(doc Envelope, env *Env) (Envelope, error)
}

// VersionedMigrator migrates plugin config envelopes through an immutable,
// ordered list of integer-versioned steps, constructed once at startup.
type VersionedMigrator struct {
	version int
	steps   []VersionedStep
}

// NewVersionedMigrator builds a migrator for a plugin whose current schema
// version is version. Steps must be in strictly ascending target order and
// the highest target must equal the declared version; both are checked here
// so a drifting VERSION constant fails at startup, not at migration time.
func NewVersionedMigrator(version int, steps []VersionedStep) (*VersionedMigrator, error) {
	if len(steps) == 0 {
		return nil, &errors.Error{
			Code: errors.EInternal,
			Msg:  "a versioned migrator requires at least one step",
		}
	}
	prev := 0
	for _, s := range steps {
		if s.Target <= prev {
			return nil, &errors.Error{
				Code: errors.EInternal,
				Msg:  fmt.Sprintf("step targets must be strictly ascending, got %d after %d", s.Target, prev),
			}
		}
		if s.Fn == nil {
			return nil, &errors.Error{
				Code: errors.EInternal,
				Msg:  fmt.Sprintf("step for version %d has no transform", s.Target),
			}
		}
		prev = s.Target
	}
	if highest := steps[len(steps)-1].Target; highest != version {
		return nil, &errors.Error{
			Code: errors.EInternal,
			Msg:  fmt.Sprintf("declared version %d does not match highest step target %d", version, highest),
		}
	}
	return &VersionedMigrator{
		version: version,
		steps:   append([]VersionedStep(nil), steps...),
	}, nil
}

// MustVersionedMigrator is NewVersionedMigrator for static initialization.
func MustVersionedMigrator(version int, steps []VersionedStep) *VersionedMigrator {
	m, err := NewVersionedMigrator(version, steps)
	if err != nil {
		panic(err)
	}
	return m
}

// Version returns the plugin's current schema version.
func (m *VersionedMigrator) Version() int {
	return m.version
}

// Migrate folds doc through every step with a target beyond the document's
// version. A step error propagates to the caller untouched; a broken panel
// config does not need to abort sibling panels, and the caller decides how
// to surface the failure.
func (m *VersionedMigrator) Migrate(doc Envelope, env *Env) (Envelope, error) {
	for _, s := range m.steps {
		if s.Target <= doc.Version {
			continue
		}
		next, err := s.Fn(doc, env)
		if err != nil {
			return Envelope{}, err
		}
		if next.Version != s.Target {
			return Envelope{}, &errors.Error{
				Code: errors.EInternal,
				Msg:  fmt.Sprintf("step for version %d produced an envelope at version %d", s.Target, next.Version),
			}
		}
		doc = next
	}
	return doc, nil
}
