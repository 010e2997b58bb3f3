package migration

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePanel struct {
	vars []TemplateVariable
}

func (p *fakePanel) Variables() []TemplateVariable { return p.vars }
func (p *fakePanel) AddVariable(v TemplateVariable) {
	p.vars = append(p.vars, v)
}

func wrapStep(target int) VersionedStep {
	return VersionedStep{
		Target: target,
		Fn: func(doc Envelope, env *Env) (Envelope, error) {
			doc.Version = target
			return doc, nil
		},
	}
}

func TestNewVersionedMigratorChecksDeclaredVersion(t *testing.T) {
	t.Parallel()

	_, err := NewVersionedMigrator(3, []VersionedStep{wrapStep(1), wrapStep(2)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not match highest step target")

	_, err = NewVersionedMigrator(2, []VersionedStep{wrapStep(2), wrapStep(1)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "strictly ascending")

	m, err := NewVersionedMigrator(2, []VersionedStep{wrapStep(1), wrapStep(2)})
	require.NoError(t, err)
	require.Equal(t, 2, m.Version())
}

func TestVersionedMigratorFoldsOutstandingSteps(t *testing.T) {
	t.Parallel()

	m := MustVersionedMigrator(3, []VersionedStep{
		wrapStep(1),
		{
			Target: 2,
			Fn: func(doc Envelope, env *Env) (Envelope, error) {
				doc.Version = 2
				doc.Config["color"] = "auto"
				return doc, nil
			},
		},
		wrapStep(3),
	})

	out, err := m.Migrate(Envelope{Version: 1, Config: map[string]interface{}{}}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, out.Version)
	require.Equal(t, "auto", out.Config["color"])

	// already latest: no steps applied
	same, err := m.Migrate(out, nil)
	require.NoError(t, err)
	require.Equal(t, out, same)
}

func TestVersionedMigratorEnvSideEffectHappensOnce(t *testing.T) {
	t.Parallel()

	m := MustVersionedMigrator(2, []VersionedStep{
		wrapStep(1),
		{
			Target: 2,
			Fn: func(doc Envelope, env *Env) (Envelope, error) {
				// hoist config variables onto the owning panel
				if _, ok := doc.Config["variable"]; ok {
					env.Panel.AddVariable(TemplateVariable{Name: doc.Config["variable"].(string)})
					delete(doc.Config, "variable")
				}
				doc.Version = 2
				return doc, nil
			},
		},
	})

	panel := &fakePanel{}
	env := &Env{Panel: panel}

	out, err := m.Migrate(Envelope{Version: 1, Config: map[string]interface{}{"variable": "threshold"}}, env)
	require.NoError(t, err)
	require.Equal(t, 2, out.Version)
	require.Len(t, panel.vars, 1)

	// a second run over the migrated envelope must not replay the effect
	_, err = m.Migrate(out, env)
	require.NoError(t, err)
	require.Len(t, panel.vars, 1)
}

func TestVersionedMigratorStepErrorPropagates(t *testing.T) {
	t.Parallel()

	m := MustVersionedMigrator(2, []VersionedStep{
		wrapStep(1),
		{
			Target: 2,
			Fn: func(doc Envelope, env *Env) (Envelope, error) {
				return Envelope{}, fmt.Errorf("x_axis config missing")
			},
		},
	})

	_, err := m.Migrate(Envelope{Version: 1, Config: map[string]interface{}{}}, nil)
	require.Error(t, err)
	require.EqualError(t, err, "x_axis config missing")
}
