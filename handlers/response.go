package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"p9e.in/launchpad/pkg/workflow"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorBody struct {
	Message string            `json:"message"`
	Code    workflow.Kind     `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Message: message, Data: data})
}

// statusFor maps a workflow error to its HTTP status.
func statusFor(e *workflow.Error) int {
	switch e.Kind {
	case workflow.KindValidation:
		if e.Unprocessable() {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case workflow.KindUnauthenticated:
		return http.StatusUnauthorized
	case workflow.KindForbidden:
		return http.StatusForbidden
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindConflict:
		return http.StatusConflict
	case workflow.KindInvalidState, workflow.KindPrerequisite:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Internal causes are logged, never sent.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := workflow.AsError(err)
	status := statusFor(e)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	} else {
		h.log.Debug().Str("code", string(e.Kind)).Str("path", r.URL.Path).Msg(e.Message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Message: e.Message, Code: e.Kind, Details: e.Details})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst unchanged.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return workflow.Validation("invalid request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, workflow.FieldErrors("invalid "+name, map[string]string{name: "must be a UUID"}, false)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (uuid.UUID, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, workflow.FieldErrors("invalid "+name, map[string]string{name: "must be a UUID"}, false)
	}
	return id, true, nil
}
