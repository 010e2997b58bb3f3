package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vistable/vistable"
	vcontext "github.com/vistable/vistable/context"
	"github.com/vistable/vistable/kit/errors"
	"github.com/vistable/vistable/mock"
)

func testHandler(t *testing.T, svc Services) http.Handler {
	t.Helper()

	if svc.Principals == nil {
		svc.Principals = &mock.PrincipalService{
			FindPrincipalF: func(_ context.Context, id uuid.UUID, typ vistable.PrincipalType) (*vistable.Principal, error) {
				return &vistable.Principal{ID: id, Type: typ, Role: vistable.RoleAuthor}, nil
			},
		}
	}
	return NewHandler(zaptest.NewLogger(t), svc)
}

func authed(req *http.Request) *http.Request {
	req.Header.Set(HeaderPrincipalID, uuid.NewString())
	req.Header.Set(HeaderPrincipalType, string(vistable.PrincipalAccount))
	return req
}

func TestRequestsWithoutIdentityAreRejected(t *testing.T) {
	t.Parallel()

	h := testHandler(t, Services{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboards", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, errors.EUnauthorized, body["code"])
}

func TestGetDashboardMapsNotFound(t *testing.T) {
	t.Parallel()

	h := testHandler(t, Services{
		Dashboards: &mock.DashboardService{
			FindDashboardByIDF: func(context.Context, uuid.UUID) (*vistable.Dashboard, error) {
				return nil, &errors.Error{Code: errors.ENotFound, Msg: "dashboard not found"}
			},
		},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/dashboards/"+uuid.NewString(), nil)))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDashboardCarriesPrincipal(t *testing.T) {
	t.Parallel()

	var seen vistable.Principal
	h := testHandler(t, Services{
		Dashboards: &mock.DashboardService{
			FindDashboardByIDF: func(ctx context.Context, id uuid.UUID) (*vistable.Dashboard, error) {
				p, err := vcontext.GetPrincipal(ctx)
				if err != nil {
					return nil, err
				}
				seen = p
				return &vistable.Dashboard{ID: id, Name: "d"}, nil
			},
		},
	})

	req := authed(httptest.NewRequest(http.MethodGet, "/api/dashboards/"+uuid.NewString(), nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, req.Header.Get(HeaderPrincipalID), seen.ID.String())

	var d vistable.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.Equal(t, "d", d.Name)
}

func TestUpdateAccessDecodesUpserts(t *testing.T) {
	t.Parallel()

	target := uuid.New()
	var got []vistable.AccessUpdate
	h := testHandler(t, Services{
		Permissions: &mock.DashboardPermissionService{
			UpdateAccessF: func(_ context.Context, dashboardID uuid.UUID, upserts []vistable.AccessUpdate) (*vistable.DashboardPermission, error) {
				got = upserts
				return &vistable.DashboardPermission{DashboardID: dashboardID}, nil
			},
		},
	})

	body := `[{"id":"` + target.String() + `","type":"ACCOUNT","level":"EDIT"}]`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/dashboards/"+uuid.NewString()+"/permission/access", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []vistable.AccessUpdate{{ID: target, Type: vistable.PrincipalAccount, Level: vistable.AccessEdit}}, got)
}

func TestMalformedIDIsBadRequest(t *testing.T) {
	t.Parallel()

	h := testHandler(t, Services{Dashboards: &mock.DashboardService{}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/dashboards/not-a-uuid", nil)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueRenameJob(t *testing.T) {
	t.Parallel()

	h := testHandler(t, Services{
		Jobs: &mock.JobService{
			AddRenameDataSourceJobF: func(_ context.Context, params vistable.RenameDataSourceParams) (*vistable.Job, error) {
				return &vistable.Job{
					ID:     uuid.New(),
					Type:   vistable.JobTypeRenameDataSource,
					Status: vistable.JobStatusInit,
				}, nil
			},
		},
	})

	body := `{"type":"postgresql","old_key":"a","new_key":"b"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/jobs/rename_datasource", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var job vistable.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.Equal(t, vistable.JobStatusInit, job.Status)
}

func TestHealthNeedsNoIdentity(t *testing.T) {
	t.Parallel()

	h := testHandler(t, Services{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
