package authorizer

import (
	"context"

	"github.com/google/uuid"

	"github.com/vistable/vistable"
	vcontext "github.com/vistable/vistable/context"
	"github.com/vistable/vistable/kit/errors"
)

var _ vistable.DashboardService = (*DashboardService)(nil)

// DashboardService wraps a vistable.DashboardService and authorizes actions
// against it appropriately.
type DashboardService struct {
	s     vistable.DashboardService
	perms vistable.DashboardPermissionService
}

// NewDashboardService constructs an instance of an authorizing dashboard service.
func NewDashboardService(s vistable.DashboardService, perms vistable.DashboardPermissionService) *DashboardService {
	return &DashboardService{
		s:     s,
		perms: perms,
	}
}

// FindDashboardByID checks to see if the principal on context has view access to the dashboard.
func (s *DashboardService) FindDashboardByID(ctx context.Context, id uuid.UUID) (*vistable.Dashboard, error) {
	d, err := s.s.FindDashboardByID(ctx, id)
	if err != nil {
		return nil, err
	}
	perm, err := s.perms.FindByDashboard(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeFromContext(ctx, perm, vistable.AccessView); err != nil {
		return nil, err
	}
	return d, nil
}

// FindDashboards retrieves all dashboards that match the provided filter and then
// filters the list down to only the dashboards the principal may view.
func (s *DashboardService) FindDashboards(ctx context.Context, filter vistable.DashboardFilter, opts vistable.FindOptions) ([]*vistable.Dashboard, int, error) {
	ds, _, err := s.s.FindDashboards(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	viewable := ds[:0]
	for _, d := range ds {
		perm, err := s.perms.FindByDashboard(ctx, d.ID)
		if err != nil {
			return nil, 0, err
		}
		if err := AuthorizeFromContext(ctx, perm, vistable.AccessView); err != nil {
			if errors.ErrorCode(err) == errors.EForbidden {
				continue
			}
			return nil, 0, err
		}
		viewable = append(viewable, d)
	}
	return viewable, len(viewable), nil
}

// CreateDashboard requires the author role; readers cannot create dashboards.
func (s *DashboardService) CreateDashboard(ctx context.Context, d *vistable.Dashboard) error {
	p, err := vcontext.GetPrincipal(ctx)
	if err != nil {
		return err
	}
	if p.Role < vistable.RoleAuthor {
		return &errors.Error{
			Code: errors.EForbidden,
			Msg:  "insufficient privileges",
			Op:   "authorizer.CreateDashboard",
		}
	}
	if d.IsPreset && !p.IsSuperAdmin() {
		return errPresetDashboard("create")
	}
	return s.s.CreateDashboard(ctx, d)
}

// UpdateDashboard checks to see if the principal on context may edit the dashboard.
// Preset dashboards may only be edited by a superadmin, regardless of the
// permission record.
func (s *DashboardService) UpdateDashboard(ctx context.Context, id uuid.UUID, upd vistable.DashboardUpdate) (*vistable.Dashboard, error) {
	d, err := s.s.FindDashboardByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMutation(ctx, d, vistable.AccessEdit, "edit"); err != nil {
		return nil, err
	}
	return s.s.UpdateDashboard(ctx, id, upd)
}

// DeleteDashboard checks to see if the principal on context may remove the dashboard.
func (s *DashboardService) DeleteDashboard(ctx context.Context, id uuid.UUID) error {
	d, err := s.s.FindDashboardByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeMutation(ctx, d, vistable.AccessRemove, "delete"); err != nil {
		return err
	}
	return s.s.DeleteDashboard(ctx, id)
}

func (s *DashboardService) authorizeMutation(ctx context.Context, d *vistable.Dashboard, required vistable.AccessLevel, action string) error {
	if d.IsPreset {
		p, err := vcontext.GetPrincipal(ctx)
		if err != nil {
			return err
		}
		if !p.IsSuperAdmin() {
			return errPresetDashboard(action)
		}
		return nil
	}

	perm, err := s.perms.FindByDashboard(ctx, d.ID)
	if err != nil {
		return err
	}
	return AuthorizeFromContext(ctx, perm, required)
}

func errPresetDashboard(action string) error {
	return &errors.Error{
		Code: errors.EForbidden,
		Msg:  "only superadmin can " + action + " a preset dashboard",
		Op:   "authorizer.Dashboard",
	}
}
