package mock

import (
	"context"

	"github.com/google/uuid"

	"github.com/vistable/vistable"
)

var _ vistable.DashboardPermissionService = &DashboardPermissionService{}

type DashboardPermissionService struct {
	FindByDashboardF func(context.Context, uuid.UUID) (*vistable.DashboardPermission, error)
	FindPermissionsF func(context.Context, vistable.PermissionFilter, vistable.FindOptions) ([]*vistable.DashboardPermission, int, error)
	UpdateAccessF    func(context.Context, uuid.UUID, []vistable.AccessUpdate) (*vistable.DashboardPermission, error)
	UpdateOwnerF     func(context.Context, uuid.UUID, vistable.OwnerUpdate) (*vistable.DashboardPermission, error)
}

func (s *DashboardPermissionService) FindByDashboard(ctx context.Context, dashboardID uuid.UUID) (*vistable.DashboardPermission, error) {
	return s.FindByDashboardF(ctx, dashboardID)
}

func (s *DashboardPermissionService) FindPermissions(ctx context.Context, filter vistable.PermissionFilter, opts vistable.FindOptions) ([]*vistable.DashboardPermission, int, error) {
	return s.FindPermissionsF(ctx, filter, opts)
}

func (s *DashboardPermissionService) UpdateAccess(ctx context.Context, dashboardID uuid.UUID, upserts []vistable.AccessUpdate) (*vistable.DashboardPermission, error) {
	return s.UpdateAccessF(ctx, dashboardID, upserts)
}

func (s *DashboardPermissionService) UpdateOwner(ctx context.Context, dashboardID uuid.UUID, upd vistable.OwnerUpdate) (*vistable.DashboardPermission, error) {
	return s.UpdateOwnerF(ctx, dashboardID, upd)
}
