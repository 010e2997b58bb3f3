package dashboards

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
)

func NewLoggingService(logger *zap.Logger, underlying vistable.DashboardService) *loggingService {
	return &loggingService{
		logger:     logger,
		underlying: underlying,
	}
}

type loggingService struct {
	logger     *zap.Logger
	underlying vistable.DashboardService
}

var _ vistable.DashboardService = (*loggingService)(nil)

func (l loggingService) FindDashboardByID(ctx context.Context, id uuid.UUID) (d *vistable.Dashboard, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to find dashboard by ID", zap.Error(err), dur)
			return
		}
		l.logger.Debug("dashboard find by ID", dur)
	}(time.Now())
	return l.underlying.FindDashboardByID(ctx, id)
}

func (l loggingService) FindDashboards(ctx context.Context, filter vistable.DashboardFilter, opts vistable.FindOptions) (ds []*vistable.Dashboard, n int, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to find dashboards", zap.Error(err), dur)
			return
		}
		l.logger.Debug("dashboards find", dur)
	}(time.Now())
	return l.underlying.FindDashboards(ctx, filter, opts)
}

func (l loggingService) CreateDashboard(ctx context.Context, d *vistable.Dashboard) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to create dashboard", zap.Error(err), dur)
			return
		}
		l.logger.Debug("dashboard create", dur)
	}(time.Now())
	return l.underlying.CreateDashboard(ctx, d)
}

func (l loggingService) UpdateDashboard(ctx context.Context, id uuid.UUID, upd vistable.DashboardUpdate) (d *vistable.Dashboard, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to update dashboard", zap.Error(err), dur)
			return
		}
		l.logger.Debug("dashboard update", dur)
	}(time.Now())
	return l.underlying.UpdateDashboard(ctx, id, upd)
}

func (l loggingService) DeleteDashboard(ctx context.Context, id uuid.UUID) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to delete dashboard", zap.Error(err), dur)
			return
		}
		l.logger.Debug("dashboard delete", dur)
	}(time.Now())
	return l.underlying.DeleteDashboard(ctx, id)
}
