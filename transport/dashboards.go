package transport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/pkg/api"
)

// DashboardHandler is the handler for the dashboard service.
type DashboardHandler struct {
	chi.Router

	api *api.API
	log *zap.Logger

	dashboardService  vistable.DashboardService
	permissionService vistable.DashboardPermissionService
}

// NewDashboardHandler returns a new instance of DashboardHandler.
func NewDashboardHandler(log *zap.Logger, a *api.API, dashboardService vistable.DashboardService, permissionService vistable.DashboardPermissionService) *DashboardHandler {
	h := &DashboardHandler{
		api:               a,
		log:               log,
		dashboardService:  dashboardService,
		permissionService: permissionService,
	}

	r := chi.NewRouter()
	r.Post("/", h.handlePostDashboard)
	r.Get("/", h.handleGetDashboards)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetDashboard)
		r.Patch("/", h.handlePatchDashboard)
		r.Delete("/", h.handleDeleteDashboard)

		r.Route("/permission", func(r chi.Router) {
			r.Get("/", h.handleGetPermission)
			r.Post("/access", h.handleUpdateAccess)
			r.Post("/owner", h.handleUpdateOwner)
		})
	})
	h.Router = r
	return h
}

type postDashboardRequest struct {
	Name     string                    `json:"name"`
	Group    string                    `json:"group"`
	IsPreset bool                      `json:"is_preset"`
	Content  vistable.DashboardContent `json:"content"`
}

func (h *DashboardHandler) handlePostDashboard(w http.ResponseWriter, r *http.Request) {
	var body postDashboardRequest
	if err := h.api.DecodeJSON(r.Body, &body); err != nil {
		h.api.Err(w, err)
		return
	}

	d := &vistable.Dashboard{
		Name:     body.Name,
		Group:    body.Group,
		IsPreset: body.IsPreset,
		Content:  body.Content,
	}
	if err := h.dashboardService.CreateDashboard(r.Context(), d); err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusCreated, d)
}

func (h *DashboardHandler) handleGetDashboards(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeFindOptions(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}

	q := r.URL.Query()
	filter := vistable.DashboardFilter{
		Name:  q.Get("name"),
		Group: q.Get("group"),
	}
	if raw := q.Get("is_preset"); raw != "" {
		preset, err := strconv.ParseBool(raw)
		if err != nil {
			h.api.Err(w, err)
			return
		}
		filter.IsPreset = &preset
	}

	ds, total, err := h.dashboardService.FindDashboards(r.Context(), filter, opts)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusOK, pageBody{Total: total, Data: ds})
}

func (h *DashboardHandler) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	d, err := h.dashboardService.FindDashboardByID(r.Context(), id)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusOK, d)
}

func (h *DashboardHandler) handlePatchDashboard(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	var upd vistable.DashboardUpdate
	if err := h.api.DecodeJSON(r.Body, &upd); err != nil {
		h.api.Err(w, err)
		return
	}
	d, err := h.dashboardService.UpdateDashboard(r.Context(), id, upd)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusOK, d)
}

func (h *DashboardHandler) handleDeleteDashboard(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	if err := h.dashboardService.DeleteDashboard(r.Context(), id); err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusNoContent, nil)
}

func (h *DashboardHandler) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	perm, err := h.permissionService.FindByDashboard(r.Context(), id)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusOK, perm)
}

func (h *DashboardHandler) handleUpdateAccess(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	var upserts []vistable.AccessUpdate
	if err := h.api.DecodeJSON(r.Body, &upserts); err != nil {
		h.api.Err(w, err)
		return
	}
	perm, err := h.permissionService.UpdateAccess(r.Context(), id, upserts)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusOK, perm)
}

func (h *DashboardHandler) handleUpdateOwner(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	var upd vistable.OwnerUpdate
	if err := h.api.DecodeJSON(r.Body, &upd); err != nil {
		h.api.Err(w, err)
		return
	}
	perm, err := h.permissionService.UpdateOwner(r.Context(), id, upd)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusOK, perm)
}
