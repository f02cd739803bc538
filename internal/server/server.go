// Package server exposes the control surface over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/viant/stepflow/model/fault"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
)

// Runtime is the part of the engine the server drives.
type Runtime interface {
	Invoke(ctx context.Context, dev bool) (*instance.Instance, error)
	Status(ctx context.Context, id string) (*instance.Status, error)
}

// InvokeResponse answers /invoke.
type InvokeResponse struct {
	ID      string           `json:"id"`
	Details *instance.Status `json:"details"`
	Force   bool             `json:"force"`
}

// StatusResponse answers /status.
type StatusResponse struct {
	Status *instance.Status `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the routes:
//
//	/invoke[?dev]            queue a poll; dev forces notification of dev destinations
//	/status?instanceId=<id>  instance status
func Handler(rt Runtime) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/invoke", func(w http.ResponseWriter, r *http.Request) {
		dev := r.URL.Query().Has("dev")
		anInstance, err := rt.Invoke(r.Context(), dev)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &InvokeResponse{ID: anInstance.ID, Details: anInstance.Status(), Force: dev})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("instanceId")
		if id == "" {
			writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "instanceId is required"})
			return
		}
		status, err := rt.Status(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &StatusResponse{Status: status})
	})
	return mux
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, dao.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, dao.ErrInvalidID), fault.KindOf(err) == fault.KindInvalid:
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		log.Printf("server: %v", err)
	}
	writeJSON(w, code, &errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("server: failed to write response: %v", err)
	}
}
