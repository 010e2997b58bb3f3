package transport

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vistable/vistable"
	vcontext "github.com/vistable/vistable/context"
	"github.com/vistable/vistable/kit/errors"
	"github.com/vistable/vistable/pkg/api"
)

// Headers written by the authenticating reverse proxy. Token verification
// happens upstream; this module only resolves the asserted identity to a
// principal with its role.
const (
	HeaderPrincipalID   = "X-Principal-Id"
	HeaderPrincipalType = "X-Principal-Type"
)

// PrincipalMiddleware resolves the request's asserted identity through
// principals and stores it on the context. Requests without a complete
// identity are rejected before any handler runs.
func PrincipalMiddleware(a *api.API, principals vistable.PrincipalService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := r.Header.Get(HeaderPrincipalID)
			rawType := r.Header.Get(HeaderPrincipalType)
			if rawID == "" || rawType == "" {
				a.Err(w, &errors.Error{
					Code: errors.EUnauthorized,
					Msg:  "no authenticated principal on request",
				})
				return
			}

			id, err := uuid.Parse(rawID)
			if err != nil {
				a.Err(w, &errors.Error{
					Code: errors.EUnauthorized,
					Msg:  "malformed principal id",
					Err:  err,
				})
				return
			}

			p, err := principals.FindPrincipal(r.Context(), id, vistable.PrincipalType(rawType))
			if err != nil {
				a.Err(w, &errors.Error{
					Code: errors.EUnauthorized,
					Msg:  "unknown principal",
					Err:  err,
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(vcontext.SetPrincipal(r.Context(), *p)))
		})
	}
}
