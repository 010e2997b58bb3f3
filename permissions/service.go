// Package permissions manages the 1:1 dashboard permission records and
// enforces the ownership rules around mutating them.
package permissions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/authorizer"
	vcontext "github.com/vistable/vistable/context"
	"github.com/vistable/vistable/kit/errors"
	"github.com/vistable/vistable/sqlite"
)

var _ vistable.DashboardPermissionService = (*Service)(nil)

var errNoOwner = &errors.Error{
	Code: errors.EInvalid,
	Msg:  "this dashboard has no owner; assign a new owner before editing permissions",
}

// Service persists and mutates dashboard permission records.
type Service struct {
	store      *sqlite.SqlStore
	principals vistable.PrincipalService
	log        *zap.Logger
	clock      clock.Clock
}

type ServiceOption func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = c
	}
}

func NewService(log *zap.Logger, store *sqlite.SqlStore, principals vistable.PrincipalService, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		principals: principals,
		log:        log,
		clock:      clock.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type permissionRow struct {
	ID         uuid.UUID           `db:"id"`
	OwnerID    sql.NullString      `db:"owner_id"`
	OwnerType  sql.NullString      `db:"owner_type"`
	Access     vistable.AccessList `db:"access"`
	CreateTime time.Time           `db:"create_time"`
	UpdateTime time.Time           `db:"update_time"`
}

func (r permissionRow) toPermission() (*vistable.DashboardPermission, error) {
	p := &vistable.DashboardPermission{
		DashboardID: r.ID,
		Access:      r.Access,
	}
	p.CreateTime = r.CreateTime
	p.UpdateTime = r.UpdateTime
	if r.OwnerID.Valid {
		id, err := uuid.Parse(r.OwnerID.String)
		if err != nil {
			return nil, &errors.Error{
				Code: errors.EInternal,
				Msg:  fmt.Sprintf("malformed owner id on dashboard %s", r.ID),
				Err:  err,
			}
		}
		p.OwnerID = &id
		p.OwnerType = vistable.PrincipalType(r.OwnerType.String)
	}
	return p, nil
}

// Create provisions the permission record of a freshly created dashboard.
// A nil owner creates the record ownerless; access mutation then stays
// locked until an owner is assigned.
func (s *Service) Create(ctx context.Context, dashboardID uuid.UUID, owner *vistable.Principal) error {
	s.store.Mu.Lock()
	defer s.store.Mu.Unlock()

	return s.createTx(ctx, s.store.DB, dashboardID, owner)
}

// CreateTx is Create inside a caller-owned transaction.
func (s *Service) CreateTx(ctx context.Context, tx *sqlx.Tx, dashboardID uuid.UUID, owner *vistable.Principal) error {
	return s.createTx(ctx, tx, dashboardID, owner)
}

func (s *Service) createTx(ctx context.Context, db sqlx.ExtContext, dashboardID uuid.UUID, owner *vistable.Principal) error {
	now := s.clock.Now().UTC()

	var ownerID, ownerType interface{}
	if owner != nil {
		ownerID = owner.ID.String()
		ownerType = string(owner.Type)
	}

	query, args, err := sq.Insert("dashboard_permission").
		Columns("id", "owner_id", "owner_type", "access", "create_time", "update_time").
		Values(dashboardID, ownerID, ownerType, vistable.AccessList{}, now, now).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
}

// FindByDashboard returns the permission record of one dashboard.
func (s *Service) FindByDashboard(ctx context.Context, dashboardID uuid.UUID) (*vistable.DashboardPermission, error) {
	s.store.Mu.RLock()
	defer s.store.Mu.RUnlock()

	return s.findByDashboard(ctx, s.store.DB, dashboardID)
}

func (s *Service) findByDashboard(ctx context.Context, db sqlx.QueryerContext, dashboardID uuid.UUID) (*vistable.DashboardPermission, error) {
	query, args, err := sq.Select("id", "owner_id", "owner_type", "access", "create_time", "update_time").
		From("dashboard_permission").
		Where(sq.Eq{"id": dashboardID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row permissionRow
	if err := sqlx.GetContext(ctx, db, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, &errors.Error{
				Code: errors.ENotFound,
				Msg:  fmt.Sprintf("permission record for dashboard %s not found", dashboardID),
				Op:   "permissions.FindByDashboard",
			}
		}
		return nil, err
	}
	return row.toPermission()
}

var permissionSortFields = map[string]bool{
	"id":          true,
	"create_time": true,
	"update_time": true,
}

// FindPermissions returns records matching filter and the total match count.
func (s *Service) FindPermissions(ctx context.Context, filter vistable.PermissionFilter, opts vistable.FindOptions) ([]*vistable.DashboardPermission, int, error) {
	s.store.Mu.RLock()
	defer s.store.Mu.RUnlock()

	base := sq.Select("id", "owner_id", "owner_type", "access", "create_time", "update_time").From("dashboard_permission")
	count := sq.Select("count(*)").From("dashboard_permission")

	if filter.DashboardID != "" {
		like := "%" + sqlite.EscapeLikePattern(filter.DashboardID) + "%"
		cond := sq.Expr("id LIKE ? ESCAPE '\\'", like)
		base = base.Where(cond)
		count = count.Where(cond)
	}

	if len(opts.Sort) == 0 {
		base = base.OrderBy("create_time ASC")
	}
	for _, srt := range opts.Sort {
		if !permissionSortFields[srt.Field] {
			return nil, 0, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("cannot sort permissions by %q", srt.Field),
				Op:   "permissions.FindPermissions",
			}
		}
		order := "ASC"
		if srt.Order == vistable.SortDesc {
			order = "DESC"
		}
		base = base.OrderBy(srt.Field + " " + order)
	}
	base = base.Offset(uint64(opts.Offset())).Limit(uint64(opts.Limit()))

	query, args, err := base.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var rows []permissionRow
	if err := sqlx.SelectContext(ctx, s.store.DB, &rows, query, args...); err != nil {
		return nil, 0, err
	}

	perms := make([]*vistable.DashboardPermission, 0, len(rows))
	for _, r := range rows {
		p, err := r.toPermission()
		if err != nil {
			return nil, 0, err
		}
		perms = append(perms, p)
	}

	query, args, err = count.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := sqlx.GetContext(ctx, s.store.DB, &total, query, args...); err != nil {
		return nil, 0, err
	}
	return perms, total, nil
}

// UpdateAccess applies the access-list upserts. The caller must hold
// REMOVE-level control over the dashboard; an ownerless record rejects every
// caller until an owner is assigned through UpdateOwner.
func (s *Service) UpdateAccess(ctx context.Context, dashboardID uuid.UUID, upserts []vistable.AccessUpdate) (*vistable.DashboardPermission, error) {
	p, err := vcontext.GetPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	s.store.Mu.Lock()
	defer s.store.Mu.Unlock()

	perm, err := s.findByDashboard(ctx, s.store.DB, dashboardID)
	if err != nil {
		return nil, err
	}

	if !perm.HasOwner() {
		return nil, errNoOwner
	}
	if err := authorizer.Authorize(p, perm, vistable.AccessRemove); err != nil {
		return nil, err
	}

	for _, u := range upserts {
		if !u.Type.Valid() {
			return nil, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("unknown principal type %q", u.Type),
				Op:   "permissions.UpdateAccess",
			}
		}
		if !u.Level.Valid() && u.Level != vistable.AccessRemoveFromList {
			return nil, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("unknown access level %q", u.Level),
				Op:   "permissions.UpdateAccess",
			}
		}
		if *perm.OwnerID == u.ID && perm.OwnerType == u.Type {
			return nil, &errors.Error{
				Code: errors.EInvalid,
				Msg:  "the owner already holds full access and cannot appear in the access list",
				Op:   "permissions.UpdateAccess",
			}
		}
	}

	perm.Access = applyUpserts(perm.Access, upserts)
	perm.UpdateTime = s.clock.Now().UTC()

	if err := s.save(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// UpdateOwner transfers ownership of the dashboard. Only the current owner
// or a superadmin may call. The candidate must already hold at least EDIT
// access or be a superadmin; blind transfer to an unrelated principal is a
// privilege escalation and is rejected.
func (s *Service) UpdateOwner(ctx context.Context, dashboardID uuid.UUID, upd vistable.OwnerUpdate) (*vistable.DashboardPermission, error) {
	p, err := vcontext.GetPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	s.store.Mu.Lock()
	defer s.store.Mu.Unlock()

	perm, err := s.findByDashboard(ctx, s.store.DB, dashboardID)
	if err != nil {
		return nil, err
	}

	if !p.IsSuperAdmin() && !perm.IsOwner(p) {
		return nil, &errors.Error{
			Code: errors.EForbidden,
			Msg:  "insufficient privileges",
			Op:   "permissions.UpdateOwner",
		}
	}

	candidate, err := s.principals.FindPrincipal(ctx, upd.ID, upd.Type)
	if err != nil {
		return nil, err
	}

	entry, hasEntry := perm.Access.Find(upd.ID, upd.Type)
	qualified := candidate.IsSuperAdmin() ||
		perm.IsOwner(*candidate) ||
		(hasEntry && entry.Level.Satisfies(vistable.AccessEdit))
	if !qualified {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "insufficient privileges to take ownership",
			Op:   "permissions.UpdateOwner",
		}
	}

	id := upd.ID
	perm.OwnerID = &id
	perm.OwnerType = upd.Type
	// the owner holds full control implicitly; drop any explicit entry
	perm.Access = applyUpserts(perm.Access, []vistable.AccessUpdate{
		{ID: upd.ID, Type: upd.Type, Level: vistable.AccessRemoveFromList},
	})
	perm.UpdateTime = s.clock.Now().UTC()

	if err := s.save(ctx, perm); err != nil {
		return nil, err
	}

	s.log.Info("Dashboard ownership transferred",
		zap.String("dashboard_id", dashboardID.String()),
		zap.String("new_owner_id", upd.ID.String()),
		zap.String("new_owner_type", string(upd.Type)),
	)
	return perm, nil
}

func (s *Service) save(ctx context.Context, perm *vistable.DashboardPermission) error {
	var ownerID, ownerType interface{}
	if perm.OwnerID != nil {
		ownerID = perm.OwnerID.String()
		ownerType = string(perm.OwnerType)
	}

	query, args, err := sq.Update("dashboard_permission").
		Set("owner_id", ownerID).
		Set("owner_type", ownerType).
		Set("access", perm.Access).
		Set("update_time", perm.UpdateTime).
		Where(sq.Eq{"id": perm.DashboardID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.store.DB.ExecContext(ctx, query, args...)
	return err
}

// applyUpserts merges upserts into the list, keeping entries unique per
// (principal id, type). REMOVE_FROM_LIST deletes; later upserts for the
// same principal win.
func applyUpserts(list vistable.AccessList, upserts []vistable.AccessUpdate) vistable.AccessList {
	type key struct {
		id uuid.UUID
		t  vistable.PrincipalType
	}

	merged := make(map[key]vistable.AccessEntry, len(list))
	order := make([]key, 0, len(list)+len(upserts))
	for _, e := range list {
		k := key{e.ID, e.Type}
		merged[k] = e
		order = append(order, k)
	}

	for _, u := range upserts {
		k := key{u.ID, u.Type}
		if u.Level == vistable.AccessRemoveFromList {
			delete(merged, k)
			continue
		}
		if _, ok := merged[k]; !ok {
			order = append(order, k)
		}
		merged[k] = vistable.AccessEntry{ID: u.ID, Type: u.Type, Level: u.Level}
	}

	out := make(vistable.AccessList, 0, len(merged))
	for _, k := range order {
		if e, ok := merged[k]; ok {
			out = append(out, e)
			delete(merged, k)
		}
	}
	return out
}
