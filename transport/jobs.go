package transport

import (
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/pkg/api"
)

// JobHandler enqueues and lists background jobs.
type JobHandler struct {
	chi.Router

	api *api.API
	log *zap.Logger

	jobService vistable.JobService
}

func NewJobHandler(log *zap.Logger, a *api.API, jobService vistable.JobService) *JobHandler {
	h := &JobHandler{
		api:        a,
		log:        log,
		jobService: jobService,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleGetJobs)
	r.Post("/rename_datasource", h.handlePostRenameDataSource)
	h.Router = r
	return h
}

func (h *JobHandler) handlePostRenameDataSource(w http.ResponseWriter, r *http.Request) {
	var params vistable.RenameDataSourceParams
	if err := h.api.DecodeJSON(r.Body, &params); err != nil {
		h.api.Err(w, err)
		return
	}

	job, err := h.jobService.AddRenameDataSourceJob(r.Context(), params)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusCreated, job)
}

func (h *JobHandler) handleGetJobs(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeFindOptions(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	filter := vistable.JobFilter{Search: r.URL.Query().Get("search")}

	jobs, total, err := h.jobService.FindJobs(r.Context(), filter, opts)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusOK, pageBody{Total: total, Data: jobs})
}
