// Package transport exposes the services over HTTP with chi. Authentication
// happens upstream; handlers trust the identity headers resolved by the
// principal middleware.
package transport

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/pkg/api"
)

const apiPrefix = "/api"

// Services holds everything the HTTP surface routes to.
type Services struct {
	Principals  vistable.PrincipalService
	Dashboards  vistable.DashboardService
	Permissions vistable.DashboardPermissionService
	DataSources vistable.DataSourceService
	Jobs        vistable.JobService
	Changelogs  vistable.DashboardChangelogService
}

// NewHandler builds the root router.
func NewHandler(log *zap.Logger, svc Services) http.Handler {
	a := api.New(api.WithLog(log))

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		middleware.RealIP,
	)

	r.Route(apiPrefix, func(r chi.Router) {
		r.Use(PrincipalMiddleware(a, svc.Principals))

		r.Mount("/dashboards", NewDashboardHandler(log, a, svc.Dashboards, svc.Permissions))
		r.Mount("/permissions", NewPermissionHandler(log, a, svc.Permissions))
		r.Mount("/datasources", NewDataSourceHandler(log, a, svc.DataSources))
		r.Mount("/jobs", NewJobHandler(log, a, svc.Jobs))
		r.Mount("/changelogs", NewChangelogHandler(log, a, svc.Changelogs))
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		a.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
