package permissions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vistable/vistable"
	vcontext "github.com/vistable/vistable/context"
	"github.com/vistable/vistable/kit/errors"
	"github.com/vistable/vistable/mock"
	"github.com/vistable/vistable/sqlite"
)

type fixture struct {
	svc        *Service
	store      *sqlite.SqlStore
	directory  map[uuid.UUID]vistable.Principal
	superadmin vistable.Principal
	owner      vistable.Principal
	editor     vistable.Principal
	viewer     vistable.Principal
	stranger   vistable.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		directory:  map[uuid.UUID]vistable.Principal{},
		superadmin: vistable.Principal{ID: uuid.New(), Type: vistable.PrincipalAccount, Role: vistable.RoleSuperAdmin},
		owner:      vistable.Principal{ID: uuid.New(), Type: vistable.PrincipalAccount, Role: vistable.RoleAuthor},
		editor:     vistable.Principal{ID: uuid.New(), Type: vistable.PrincipalAccount, Role: vistable.RoleAuthor},
		viewer:     vistable.Principal{ID: uuid.New(), Type: vistable.PrincipalAccount, Role: vistable.RoleReader},
		stranger:   vistable.Principal{ID: uuid.New(), Type: vistable.PrincipalAccount, Role: vistable.RoleAuthor},
	}
	for _, p := range []vistable.Principal{f.superadmin, f.owner, f.editor, f.viewer, f.stranger} {
		f.directory[p.ID] = p
	}

	principals := &mock.PrincipalService{
		FindPrincipalF: func(_ context.Context, id uuid.UUID, typ vistable.PrincipalType) (*vistable.Principal, error) {
			p, ok := f.directory[id]
			if !ok || p.Type != typ {
				return nil, &errors.Error{Code: errors.ENotFound, Msg: "principal not found"}
			}
			return &p, nil
		},
	}

	f.store = sqlite.NewTestStore(t)
	f.svc = NewService(zaptest.NewLogger(t), f.store, principals)
	return f
}

func asCtx(p vistable.Principal) context.Context {
	return vcontext.SetPrincipal(context.Background(), p)
}

// createDashboard seeds the parent dashboard row, then provisions its
// permission record. The permission table references dashboard (id).
func (f *fixture) createDashboard(t *testing.T, owner *vistable.Principal) uuid.UUID {
	t.Helper()

	id := uuid.New()
	now := time.Now().UTC()
	_, err := f.store.DB.Exec(
		"INSERT INTO dashboard (id, name, group_name, is_preset, content, create_time, update_time) VALUES (?, ?, '', 0, '{}', ?, ?)",
		id, "dashboard-"+id.String()[:8], now, now,
	)
	require.NoError(t, err)
	require.NoError(t, f.svc.Create(context.Background(), id, owner))
	return id
}

func TestCreateAndFindByDashboard(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createDashboard(t, &f.owner)

	perm, err := f.svc.FindByDashboard(context.Background(), id)
	require.NoError(t, err)
	require.True(t, perm.HasOwner())
	require.Equal(t, f.owner.ID, *perm.OwnerID)
	require.Equal(t, vistable.PrincipalAccount, perm.OwnerType)
	require.Empty(t, perm.Access)

	_, err = f.svc.FindByDashboard(context.Background(), uuid.New())
	require.Error(t, err)
	require.Equal(t, errors.ENotFound, errors.ErrorCode(err))
}

func TestCreateRequiresDashboardRow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	// no dashboard row with this id exists, so the referential check rejects
	// the permission record
	err := f.svc.Create(context.Background(), uuid.New(), &f.owner)
	require.ErrorContains(t, err, "FOREIGN KEY constraint failed")
}

func TestUpdateAccessOwnerUpsertsAndRemoves(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createDashboard(t, &f.owner)
	ctx := asCtx(f.owner)

	perm, err := f.svc.UpdateAccess(ctx, id, []vistable.AccessUpdate{
		{ID: f.viewer.ID, Type: vistable.PrincipalAccount, Level: vistable.AccessView},
		{ID: f.editor.ID, Type: vistable.PrincipalAccount, Level: vistable.AccessEdit},
	})
	require.NoError(t, err)
	require.Len(t, perm.Access, 2)

	// upserting the same principal replaces, never duplicates
	perm, err = f.svc.UpdateAccess(ctx, id, []vistable.AccessUpdate{
		{ID: f.viewer.ID, Type: vistable.PrincipalAccount, Level: vistable.AccessEdit},
	})
	require.NoError(t, err)
	require.Len(t, perm.Access, 2)
	entry, ok := perm.Access.Find(f.viewer.ID, vistable.PrincipalAccount)
	require.True(t, ok)
	require.Equal(t, vistable.AccessEdit, entry.Level)

	// the sentinel deletes the entry instead of granting a level
	perm, err = f.svc.UpdateAccess(ctx, id, []vistable.AccessUpdate{
		{ID: f.viewer.ID, Type: vistable.PrincipalAccount, Level: vistable.AccessRemoveFromList},
	})
	require.NoError(t, err)
	require.Len(t, perm.Access, 1)
	_, ok = perm.Access.Find(f.viewer.ID, vistable.PrincipalAccount)
	require.False(t, ok)
}

func TestUpdateAccessRequiresRemoveLevel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createDashboard(t, &f.owner)

	_, err := f.svc.UpdateAccess(asCtx(f.owner), id, []vistable.AccessUpdate{
		{ID: f.editor.ID, Type: vistable.PrincipalAccount, Level: vistable.AccessEdit},
	})
	require.NoError(t, err)

	// an EDIT holder cannot touch the access list
	_, err = f.svc.UpdateAccess(asCtx(f.editor), id, []vistable.AccessUpdate{
		{ID: f.stranger.ID, Type: vistable.PrincipalAccount, Level: vistable.AccessView},
	})
	require.Error(t, err)
	require.Equal(t, errors.EForbidden, errors.ErrorCode(err))

	// a superadmin can
	_, err = f.svc.UpdateAccess(asCtx(f.superadmin), id, []vistable.AccessUpdate{
		{ID: f.stranger.ID, Type: vistable.PrincipalAccount, Level: vistable.AccessView},
	})
	require.NoError(t, err)
}

func TestUpdateAccessOwnerlessIsLocked(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createDashboard(t, nil)

	for _, caller := range []vistable.Principal{f.stranger, f.superadmin} {
		_, err := f.svc.UpdateAccess(asCtx(caller), id, []vistable.AccessUpdate{
			{ID: f.viewer.ID, Type: vistable.PrincipalAccount, Level: vistable.AccessView},
		})
		require.Error(t, err)
		require.Equal(t, errors.EInvalid, errors.ErrorCode(err))
		require.Contains(t, errors.ErrorMessage(err), "assign a new owner")
	}
}

func TestUpdateAccessRejectsOwnerEntry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createDashboard(t, &f.owner)

	_, err := f.svc.UpdateAccess(asCtx(f.owner), id, []vistable.AccessUpdate{
		{ID: f.owner.ID, Type: vistable.PrincipalAccount, Level: vistable.AccessView},
	})
	require.Error(t, err)
	require.Equal(t, errors.EInvalid, errors.ErrorCode(err))
}

func TestUpdateOwnerRequiresQualifiedCandidate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createDashboard(t, &f.owner)

	// a principal with no relationship to the dashboard cannot be handed
	// ownership
	_, err := f.svc.UpdateOwner(asCtx(f.owner), id, vistable.OwnerUpdate{ID: f.stranger.ID, Type: vistable.PrincipalAccount})
	require.Error(t, err)
	require.Equal(t, errors.EInvalid, errors.ErrorCode(err))
	require.Contains(t, errors.ErrorMessage(err), "insufficient privileges to take ownership")

	// grant EDIT, then the transfer is allowed and the explicit entry is
	// folded into ownership
	_, err = f.svc.UpdateAccess(asCtx(f.owner), id, []vistable.AccessUpdate{
		{ID: f.editor.ID, Type: vistable.PrincipalAccount, Level: vistable.AccessEdit},
	})
	require.NoError(t, err)

	perm, err := f.svc.UpdateOwner(asCtx(f.owner), id, vistable.OwnerUpdate{ID: f.editor.ID, Type: vistable.PrincipalAccount})
	require.NoError(t, err)
	require.Equal(t, f.editor.ID, *perm.OwnerID)
	_, ok := perm.Access.Find(f.editor.ID, vistable.PrincipalAccount)
	require.False(t, ok)
}

func TestUpdateOwnerOnlyOwnerOrSuperAdmin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createDashboard(t, &f.owner)

	_, err := f.svc.UpdateOwner(asCtx(f.stranger), id, vistable.OwnerUpdate{ID: f.stranger.ID, Type: vistable.PrincipalAccount})
	require.Error(t, err)
	require.Equal(t, errors.EForbidden, errors.ErrorCode(err))

	// superadmin may hand ownership to a superadmin candidate outright
	perm, err := f.svc.UpdateOwner(asCtx(f.superadmin), id, vistable.OwnerUpdate{ID: f.superadmin.ID, Type: vistable.PrincipalAccount})
	require.NoError(t, err)
	require.Equal(t, f.superadmin.ID, *perm.OwnerID)
}

func TestUpdateOwnerRecoversOwnerlessRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.createDashboard(t, nil)

	// plain principals cannot claim an ownerless dashboard
	_, err := f.svc.UpdateOwner(asCtx(f.stranger), id, vistable.OwnerUpdate{ID: f.stranger.ID, Type: vistable.PrincipalAccount})
	require.Error(t, err)
	require.Equal(t, errors.EForbidden, errors.ErrorCode(err))

	// a superadmin assigns an owner, unlocking access mutation
	_, err = f.svc.UpdateOwner(asCtx(f.superadmin), id, vistable.OwnerUpdate{ID: f.superadmin.ID, Type: vistable.PrincipalAccount})
	require.NoError(t, err)

	_, err = f.svc.UpdateAccess(asCtx(f.superadmin), id, []vistable.AccessUpdate{
		{ID: f.viewer.ID, Type: vistable.PrincipalAccount, Level: vistable.AccessView},
	})
	require.NoError(t, err)
}

func TestFindPermissionsFilterSortPagination(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = f.createDashboard(t, &f.owner)
	}

	perms, total, err := f.svc.FindPermissions(context.Background(), vistable.PermissionFilter{}, vistable.FindOptions{
		Page: 1, PageSize: 2,
		Sort: []vistable.Sort{{Field: "create_time", Order: vistable.SortAsc}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, perms, 2)

	// fuzzy id filter
	perms, total, err = f.svc.FindPermissions(context.Background(), vistable.PermissionFilter{
		DashboardID: ids[0].String()[:18],
	}, vistable.FindOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, perms, 1)
	require.Equal(t, ids[0], perms[0].DashboardID)
}

func TestFindPermissionsRejectsUnknownSortField(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, _, err := f.svc.FindPermissions(context.Background(), vistable.PermissionFilter{}, vistable.FindOptions{
		Sort: []vistable.Sort{{Field: "owner_id; --", Order: vistable.SortAsc}},
	})
	require.Error(t, err)
}
