package transport

import (
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/pkg/api"
)

// PermissionHandler lists permission records across dashboards. Per-dashboard
// mutation lives under the dashboard routes.
type PermissionHandler struct {
	chi.Router

	api *api.API
	log *zap.Logger

	permissionService vistable.DashboardPermissionService
}

func NewPermissionHandler(log *zap.Logger, a *api.API, permissionService vistable.DashboardPermissionService) *PermissionHandler {
	h := &PermissionHandler{
		api:               a,
		log:               log,
		permissionService: permissionService,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleGetPermissions)
	h.Router = r
	return h
}

func (h *PermissionHandler) handleGetPermissions(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeFindOptions(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	filter := vistable.PermissionFilter{DashboardID: r.URL.Query().Get("id")}

	perms, total, err := h.permissionService.FindPermissions(r.Context(), filter, opts)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusOK, pageBody{Total: total, Data: perms})
}
