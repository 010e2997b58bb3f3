package mock

import (
	"context"

	"github.com/google/uuid"

	"github.com/vistable/vistable"
)

var _ vistable.PrincipalService = &PrincipalService{}

type PrincipalService struct {
	FindPrincipalF func(context.Context, uuid.UUID, vistable.PrincipalType) (*vistable.Principal, error)
}

func (s *PrincipalService) FindPrincipal(ctx context.Context, id uuid.UUID, t vistable.PrincipalType) (*vistable.Principal, error) {
	return s.FindPrincipalF(ctx, id, t)
}
