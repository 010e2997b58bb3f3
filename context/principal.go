package context

import (
	"context"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/kit/errors"
)

type contextKey string

const (
	principalCtxKey = contextKey("vistable/principal/v1")
)

// SetPrincipal sets the authenticated principal on context.
func SetPrincipal(ctx context.Context, p vistable.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// GetPrincipal retrieves the authenticated principal from context.
func GetPrincipal(ctx context.Context) (vistable.Principal, error) {
	p, ok := ctx.Value(principalCtxKey).(vistable.Principal)
	if !ok {
		return vistable.Principal{}, &errors.Error{
			Code: errors.EUnauthorized,
			Msg:  "principal not found on context",
		}
	}
	return p, nil
}
