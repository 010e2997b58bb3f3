package mock

import (
	"context"

	"github.com/google/uuid"

	"github.com/vistable/vistable"
)

var _ vistable.DashboardService = &DashboardService{}

type DashboardService struct {
	CreateDashboardF   func(context.Context, *vistable.Dashboard) error
	FindDashboardByIDF func(context.Context, uuid.UUID) (*vistable.Dashboard, error)
	FindDashboardsF    func(context.Context, vistable.DashboardFilter, vistable.FindOptions) ([]*vistable.Dashboard, int, error)
	UpdateDashboardF   func(context.Context, uuid.UUID, vistable.DashboardUpdate) (*vistable.Dashboard, error)
	DeleteDashboardF   func(context.Context, uuid.UUID) error
}

func (s *DashboardService) FindDashboardByID(ctx context.Context, id uuid.UUID) (*vistable.Dashboard, error) {
	return s.FindDashboardByIDF(ctx, id)
}

func (s *DashboardService) FindDashboards(ctx context.Context, filter vistable.DashboardFilter, opts vistable.FindOptions) ([]*vistable.Dashboard, int, error) {
	return s.FindDashboardsF(ctx, filter, opts)
}

func (s *DashboardService) CreateDashboard(ctx context.Context, d *vistable.Dashboard) error {
	return s.CreateDashboardF(ctx, d)
}

func (s *DashboardService) UpdateDashboard(ctx context.Context, id uuid.UUID, upd vistable.DashboardUpdate) (*vistable.Dashboard, error) {
	return s.UpdateDashboardF(ctx, id, upd)
}

func (s *DashboardService) DeleteDashboard(ctx context.Context, id uuid.UUID) error {
	return s.DeleteDashboardF(ctx, id)
}
