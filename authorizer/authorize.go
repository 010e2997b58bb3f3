// Package authorizer decides what an authenticated principal may do to a
// dashboard, and wraps services to enforce those decisions.
package authorizer

import (
	"context"
	"fmt"

	"github.com/vistable/vistable"
	vcontext "github.com/vistable/vistable/context"
	"github.com/vistable/vistable/kit/errors"
)

// Authorize yields the access decision for p against a dashboard's
// permission record. A nil error is Allow; a denial carries EForbidden and
// a human-readable reason.
//
// Decision order: a superadmin is always allowed; the owner is allowed at
// every level; otherwise the principal's explicit access entry must be at
// least as strong as required (VIEW < EDIT < REMOVE). A record with no
// owner and an empty access list is open for VIEW; once any explicit entry
// exists, VIEW requires one too.
func Authorize(p vistable.Principal, perm *vistable.DashboardPermission, required vistable.AccessLevel) error {
	if !required.Valid() {
		return &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("unknown access level %q", required),
			Op:   "authorizer.Authorize",
		}
	}

	if p.IsSuperAdmin() {
		return nil
	}

	if perm.IsOwner(p) {
		return nil
	}

	if required == vistable.AccessView && !perm.HasOwner() && len(perm.Access) == 0 {
		return nil
	}

	if entry, ok := perm.Access.Find(p.ID, p.Type); ok && entry.Level.Satisfies(required) {
		return nil
	}

	return &errors.Error{
		Code: errors.EForbidden,
		Msg:  "insufficient privileges",
		Op:   "authorizer.Authorize",
	}
}

// AuthorizeFromContext is Authorize with the principal taken off the
// request context.
func AuthorizeFromContext(ctx context.Context, perm *vistable.DashboardPermission, required vistable.AccessLevel) error {
	p, err := vcontext.GetPrincipal(ctx)
	if err != nil {
		return err
	}
	return Authorize(p, perm, required)
}
