package migration

import (
	"fmt"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/kit/errors"
)

// StepFunc advances a document by exactly one version. It either returns a
// complete new document at its target version or an error; there is no
// partial application.
type StepFunc func(doc vistable.DashboardContent, env *Env) (vistable.DashboardContent, error)

// Registry binds a StepFunc to each ledger version. The binding is built
// once at startup; there is no runtime dispatch by module path.
type Registry struct {
	ledger *Ledger
	steps  map[string]StepFunc
}

// NewRegistry constructs an empty registry over ledger.
func NewRegistry(ledger *Ledger) *Registry {
	return &Registry{
		ledger: ledger,
		steps:  make(map[string]StepFunc),
	}
}

// Ledger returns the registry's version ledger.
func (r *Registry) Ledger() *Ledger {
	return r.ledger
}

// Register binds fn as the step producing target. The target must be a
// ledger version and must not already have a step.
func (r *Registry) Register(target string, fn StepFunc) error {
	if !r.ledger.Contains(target) {
		return &errors.Error{
			Code: errors.EInternal,
			Msg:  fmt.Sprintf("version %q is not in the ledger", target),
			Op:   "migration.Register",
		}
	}
	if _, ok := r.steps[target]; ok {
		return &errors.Error{
			Code: errors.EInternal,
			Msg:  fmt.Sprintf("a step for version %q is already registered", target),
			Op:   "migration.Register",
		}
	}
	r.steps[target] = fn
	return nil
}

// MustRegister is Register for static initialization.
func (r *Registry) MustRegister(target string, fn StepFunc) {
	if err := r.Register(target, fn); err != nil {
		panic(err)
	}
}

// NextStep resolves the step that advances a document currently at current.
// ok is false when current is already the latest version. A ledger version
// with no registered step is a deployment inconsistency and errors.
func (r *Registry) NextStep(current string) (target string, fn StepFunc, ok bool, err error) {
	target, ok = r.ledger.Next(current)
	if !ok {
		return "", nil, false, nil
	}
	fn, found := r.steps[target]
	if !found {
		return "", nil, false, &errors.Error{
			Code: errors.EInternal,
			Msg:  fmt.Sprintf("no migration step registered for version %q", target),
			Op:   "migration.NextStep",
		}
	}
	return target, fn, true, nil
}
