package transport

import (
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/pkg/api"
)

// DataSourceHandler is the handler for datasource metadata. A key rename is
// not exposed here; it goes through the job routes.
type DataSourceHandler struct {
	chi.Router

	api *api.API
	log *zap.Logger

	datasourceService vistable.DataSourceService
}

func NewDataSourceHandler(log *zap.Logger, a *api.API, datasourceService vistable.DataSourceService) *DataSourceHandler {
	h := &DataSourceHandler{
		api:               a,
		log:               log,
		datasourceService: datasourceService,
	}

	r := chi.NewRouter()
	r.Post("/", h.handlePostDataSource)
	r.Get("/", h.handleGetDataSources)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetDataSource)
		r.Delete("/", h.handleDeleteDataSource)
	})
	h.Router = r
	return h
}

func (h *DataSourceHandler) handlePostDataSource(w http.ResponseWriter, r *http.Request) {
	var ds vistable.DataSource
	if err := h.api.DecodeJSON(r.Body, &ds); err != nil {
		h.api.Err(w, err)
		return
	}
	if err := h.datasourceService.CreateDataSource(r.Context(), &ds); err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusCreated, &ds)
}

func (h *DataSourceHandler) handleGetDataSources(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeFindOptions(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	rows, total, err := h.datasourceService.FindDataSources(r.Context(), opts)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusOK, pageBody{Total: total, Data: rows})
}

func (h *DataSourceHandler) handleGetDataSource(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	ds, err := h.datasourceService.FindDataSourceByID(r.Context(), id)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusOK, ds)
}

func (h *DataSourceHandler) handleDeleteDataSource(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		h.api.Err(w, err)
		return
	}
	if err := h.datasourceService.DeleteDataSource(r.Context(), id); err != nil {
		h.api.Err(w, err)
		return
	}
	h.api.Respond(w, http.StatusNoContent, nil)
}
