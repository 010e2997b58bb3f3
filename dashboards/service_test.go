package dashboards

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/changelog"
	vcontext "github.com/vistable/vistable/context"
	"github.com/vistable/vistable/kit/errors"
	"github.com/vistable/vistable/migration"
	"github.com/vistable/vistable/mock"
	"github.com/vistable/vistable/permissions"
	"github.com/vistable/vistable/sqlite"
)

type serviceFixture struct {
	svc        *Service
	perms      *permissions.Service
	changelogs *changelog.Service
	author     vistable.Principal
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	log := zaptest.NewLogger(t)
	store := sqlite.NewTestStore(t)

	f := &serviceFixture{
		author: vistable.Principal{ID: uuid.New(), Type: vistable.PrincipalAccount, Role: vistable.RoleAuthor},
	}
	principals := &mock.PrincipalService{
		FindPrincipalF: func(_ context.Context, id uuid.UUID, typ vistable.PrincipalType) (*vistable.Principal, error) {
			return nil, &errors.Error{Code: errors.ENotFound, Msg: "principal not found"}
		},
	}

	f.perms = permissions.NewService(log, store, principals)
	f.changelogs = changelog.NewService(log, store)
	runner := migration.NewRunner(DefaultRegistry(), log)
	f.svc = NewService(log, store, runner, f.perms, f.changelogs)
	return f
}

func (f *serviceFixture) ctx() context.Context {
	return vcontext.SetPrincipal(context.Background(), f.author)
}

func TestCreateDashboardProvisionsOwnedPermission(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	d := &vistable.Dashboard{Name: "revenue", Group: "finance"}
	require.NoError(t, f.svc.CreateDashboard(f.ctx(), d))
	require.NotEqual(t, uuid.Nil, d.ID)
	require.Equal(t, DefaultLedger.Latest(), d.Content.Version())

	perm, err := f.perms.FindByDashboard(context.Background(), d.ID)
	require.NoError(t, err)
	require.True(t, perm.HasOwner())
	require.Equal(t, f.author.ID, *perm.OwnerID)

	got, err := f.svc.FindDashboardByID(context.Background(), d.ID)
	require.NoError(t, err)
	require.Equal(t, "revenue", got.Name)
	require.Equal(t, "finance", got.Group)
}

func TestCreateDashboardRequiresPrincipal(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	err := f.svc.CreateDashboard(context.Background(), &vistable.Dashboard{Name: "x"})
	require.Error(t, err)
	require.Equal(t, errors.EUnauthorized, errors.ErrorCode(err))
}

func TestCreateDashboardMigratesLegacyContent(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	d := &vistable.Dashboard{
		Name: "legacy",
		Content: vistable.DashboardContent{
			"definition": map[string]interface{}{
				"queries": []interface{}{
					map[string]interface{}{"type": "postgresql", "key": "preset"},
				},
			},
		},
	}
	require.NoError(t, f.svc.CreateDashboard(f.ctx(), d))

	got, err := f.svc.FindDashboardByID(context.Background(), d.ID)
	require.NoError(t, err)
	require.Equal(t, DefaultLedger.Latest(), got.Content.Version())
	q := got.Content["definition"].(map[string]interface{})["queries"].([]interface{})[0].(map[string]interface{})
	require.NotEmpty(t, q["id"])
}

func TestUpdateDashboardRecordsChangelog(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	d := &vistable.Dashboard{Name: "before"}
	require.NoError(t, f.svc.CreateDashboard(f.ctx(), d))

	name := "after"
	got, err := f.svc.UpdateDashboard(context.Background(), d.ID, vistable.DashboardUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "after", got.Name)

	rows, total, err := f.changelogs.FindChangelogs(context.Background(), vistable.ChangelogFilter{DashboardID: &d.ID}, vistable.FindOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Contains(t, rows[0].Diff, "before")
	require.Contains(t, rows[0].Diff, "after")
}

func TestUpdateDashboardRejectsOutdatedContent(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	d := &vistable.Dashboard{Name: "d"}
	require.NoError(t, f.svc.CreateDashboard(f.ctx(), d))

	_, err := f.svc.UpdateDashboard(context.Background(), d.ID, vistable.DashboardUpdate{
		Content: vistable.DashboardContent{"version": "2.1.0"},
	})
	require.Error(t, err)
	require.Equal(t, errors.EInvalid, errors.ErrorCode(err))
	require.Contains(t, errors.ErrorMessage(err), "outdated")
}

func TestFindDashboardsFilter(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	for _, d := range []*vistable.Dashboard{
		{Name: "alpha", Group: "g1"},
		{Name: "alphabet", Group: "g2"},
		{Name: "beta", Group: "g1", IsPreset: true},
	} {
		require.NoError(t, f.svc.CreateDashboard(f.ctx(), d))
	}

	ds, total, err := f.svc.FindDashboards(context.Background(), vistable.DashboardFilter{Name: "alpha"}, vistable.FindOptions{
		Sort: []vistable.Sort{{Field: "name", Order: vistable.SortAsc}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "alpha", ds[0].Name)
	require.Equal(t, "alphabet", ds[1].Name)

	preset := true
	ds, total, err = f.svc.FindDashboards(context.Background(), vistable.DashboardFilter{IsPreset: &preset}, vistable.FindOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "beta", ds[0].Name)
}

func TestDeleteDashboardCascadesPermission(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	d := &vistable.Dashboard{Name: "doomed"}
	require.NoError(t, f.svc.CreateDashboard(f.ctx(), d))

	require.NoError(t, f.svc.DeleteDashboard(context.Background(), d.ID))

	_, err := f.svc.FindDashboardByID(context.Background(), d.ID)
	require.Equal(t, errors.ENotFound, errors.ErrorCode(err))
	_, err = f.perms.FindByDashboard(context.Background(), d.ID)
	require.Equal(t, errors.ENotFound, errors.ErrorCode(err))

	require.Equal(t, errors.ENotFound, errors.ErrorCode(f.svc.DeleteDashboard(context.Background(), d.ID)))
}
