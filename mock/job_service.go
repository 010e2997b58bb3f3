package mock

import (
	"context"

	"github.com/vistable/vistable"
)

var _ vistable.JobService = &JobService{}

type JobService struct {
	AddRenameDataSourceJobF func(context.Context, vistable.RenameDataSourceParams) (*vistable.Job, error)
	FindJobsF               func(context.Context, vistable.JobFilter, vistable.FindOptions) ([]*vistable.Job, int, error)
}

func (s *JobService) AddRenameDataSourceJob(ctx context.Context, params vistable.RenameDataSourceParams) (*vistable.Job, error) {
	return s.AddRenameDataSourceJobF(ctx, params)
}

func (s *JobService) FindJobs(ctx context.Context, filter vistable.JobFilter, opts vistable.FindOptions) ([]*vistable.Job, int, error) {
	return s.FindJobsF(ctx, filter, opts)
}
