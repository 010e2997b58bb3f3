package migration

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/kit/errors"
)

// Result is the outcome of a full migration run over one document.
type Result struct {
	// Doc is the final document, at the latest ledger version.
	Doc vistable.DashboardContent
	// Applied is the ordered list of version tags the document passed
	// through. Empty when the document was already at the latest version.
	Applied []string
}

// Runner drives repeated single-step application until a document reaches
// the latest ledger version.
type Runner struct {
	registry *Registry
	log      *zap.Logger
}

func NewRunner(registry *Registry, log *zap.Logger) *Runner {
	return &Runner{
		registry: registry,
		log:      log,
	}
}

// Migrate folds doc through every outstanding step. A version missing from
// the ledger marks the document as corrupt or newer than this deployment
// and errors immediately; batch callers treat that as fatal to the whole
// run. A step error halts the chain and propagates; Result is discarded in
// that case, so there are no partial multi-step commits.
func (r *Runner) Migrate(doc vistable.DashboardContent, env *Env) (Result, error) {
	current := doc.Version()
	if current != "" && !r.registry.Ledger().Contains(current) {
		return Result{}, &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("content version %q is not migratable", current),
			Op:   "migration.Migrate",
		}
	}

	var applied []string
	for {
		target, fn, ok, err := r.registry.NextStep(current)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}

		next, err := fn(doc, env)
		if err != nil {
			return Result{}, &errors.Error{
				Code: errors.EInternal,
				Msg:  fmt.Sprintf("migrating content to version %q", target),
				Op:   "migration.Migrate",
				Err:  err,
			}
		}
		if got := next.Version(); got != target {
			return Result{}, &errors.Error{
				Code: errors.EInternal,
				Msg:  fmt.Sprintf("step for version %q produced a document at version %q", target, got),
				Op:   "migration.Migrate",
			}
		}

		r.log.Debug("Applied content migration step",
			zap.String("from_version", current),
			zap.String("to_version", target),
		)

		doc = next
		current = target
		applied = append(applied, target)
	}

	return Result{Doc: doc, Applied: applied}, nil
}
