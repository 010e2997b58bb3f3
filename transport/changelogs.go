package transport

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/kit/errors"
	"github.com/vistable/vistable/pkg/api"
)

// ChangelogHandler lists dashboard content changelogs.
type ChangelogHandler struct {
	chi.Router

	api *api.API
	log *zap.Logger

	changelogService vistable.DashboardChangelogService
}

func NewChangelogHandler(log *zap.Logger, a *api.API, changelogService vistable.DashboardChangelogService) *ChangelogHandler {
	h := &ChangelogHandler{
		api:              a,
		log:              log,
		changelogService: changelogService,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleGetChangelogs)
	h.Router = r
	return h
}

func (h *ChangelogHandler) handleGetChangelogs(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeFindOptions(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}

	var filter vistable.ChangelogFilter
	if raw := r.URL.Query().Get("dashboard_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.api.Err(w, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("malformed dashboard_id %q", raw),
				Err:  err,
			})
			return
		}
		filter.DashboardID = &id
	}

	logs, total, err := h.changelogService.FindChangelogs(r.Context(), filter, opts)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusOK, pageBody{Total: total, Data: logs})
}
