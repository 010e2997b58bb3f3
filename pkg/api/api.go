// Package api holds the JSON encode/decode helpers shared by all HTTP
// handlers.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/vistable/vistable/kit/errors"
)

// ErrBody is the JSON shape of every error response.
type ErrBody struct {
	Code string `json:"code"`
	Msg  string `json:"message"`
}

type APIOptFn func(*API)

func WithLog(logger *zap.Logger) APIOptFn {
	return func(api *API) {
		api.logger = logger
	}
}

// API responds to HTTP requests with consistently encoded JSON bodies and
// maps service errors onto HTTP statuses.
type API struct {
	logger *zap.Logger
}

func New(opts ...APIOptFn) *API {
	api := API{
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(&api)
	}
	return &api
}

func (a *API) DecodeJSON(r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return &errors.Error{
			Code: errors.EInvalid,
			Msg:  "invalid json request body",
			Err:  err,
		}
	}
	return nil
}

func (a *API) Respond(w http.ResponseWriter, status int, v interface{}) {
	if status == http.StatusNoContent || v == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("Failed to encode response body", zap.Error(err))
	}
}

// Err writes the error as a JSON body with the status its code maps to.
func (a *API) Err(w http.ResponseWriter, err error) {
	code := errors.ErrorCode(err)
	msg := errors.ErrorMessage(err)
	if msg == "" {
		msg = "an internal error has occurred"
	}

	status := StatusCode(code)
	if status >= http.StatusInternalServerError {
		a.logger.Error("API error", zap.Error(err))
	}
	a.Respond(w, status, ErrBody{Code: code, Msg: msg})
}

// StatusCode maps a service error code onto an HTTP status.
func StatusCode(code string) int {
	switch code {
	case errors.EInvalid:
		return http.StatusBadRequest
	case errors.EUnauthorized:
		return http.StatusUnauthorized
	case errors.EForbidden:
		return http.StatusForbidden
	case errors.ENotFound:
		return http.StatusNotFound
	case errors.EConflict:
		return http.StatusConflict
	case errors.EUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
