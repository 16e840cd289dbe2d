package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/courier/pkg/logger"
)

// Response is the envelope of every JSON body the API writes.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

func (a *API) respond(w http.ResponseWriter, r *http.Request, data any, meta map[string]any) {
	a.respondStatus(w, r, http.StatusOK, data, meta)
}

func (a *API) respondStatus(w http.ResponseWriter, r *http.Request, status int, data any, meta map[string]any) {
	if err := writeJSON(w, status, Response{Data: data, Meta: meta}); err != nil {
		a.logger.LogAttrs(r.Context(), slog.LevelWarn, "failed to write response",
			logger.RequestID(RequestIDFromContext(r.Context())),
			logger.Error(err),
		)
	}
}

// fail writes err as an error envelope. Internal errors are logged and
// answered with a generic message.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	message := err.Error()

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
		if status == http.StatusInternalServerError {
			message = http.StatusText(status)
		}
	}
	a.logger.LogAttrs(r.Context(), level, "request failed",
		logger.RequestID(RequestIDFromContext(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		logger.Error(err),
	)

	_ = writeJSON(w, status, Response{Error: &ErrorDetail{Code: code, Message: message}})
}
