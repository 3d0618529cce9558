// Package httpapi exposes the registry engine over a JSON HTTP API.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/terrachain/registry/internal/registry/engine"
)

// Server routes registry HTTP requests to the reconciliation engine.
type Server struct {
	engine *engine.Engine
	auth   authenticator
}

// Options configures the HTTP server.
type Options struct {
	// JWTSecret enables bearer-token authentication when set. Without it the
	// caller account is read from the X-Registry-Account header, which is only
	// acceptable behind a trusted gateway.
	JWTSecret []byte
}

// New constructs an HTTP server around a reconciliation engine.
func New(eng *engine.Engine, opts Options) *Server {
	return &Server{
		engine: eng,
		auth:   newAuthenticator(opts.JWTSecret),
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/properties", s.handleRegisterProperty).Methods(http.MethodPost)
	v1.HandleFunc("/properties", s.handleListProperties).Methods(http.MethodGet)
	v1.HandleFunc("/properties/{id:[0-9]+}", s.handleGetProperty).Methods(http.MethodGet)
	v1.HandleFunc("/properties/{id:[0-9]+}/verify", s.handleVerifyProperty).Methods(http.MethodPost)
	v1.HandleFunc("/properties/{id:[0-9]+}/transfers", s.handleInitiateTransfer).Methods(http.MethodPost)

	v1.HandleFunc("/transfers", s.handleListTransfers).Methods(http.MethodGet)
	v1.HandleFunc("/transfers/{id:[0-9]+}", s.handleGetTransfer).Methods(http.MethodGet)
	v1.HandleFunc("/transfers/{id:[0-9]+}/approve", s.handleApproveTransfer).Methods(http.MethodPost)
	v1.HandleFunc("/transfers/{id:[0-9]+}/reject", s.handleRejectTransfer).Methods(http.MethodPost)
	v1.HandleFunc("/transfers/{id:[0-9]+}/execute", s.handleExecuteTransfer).Methods(http.MethodPost)
	v1.HandleFunc("/transfers/{id:[0-9]+}/cancel", s.handleCancelTransfer).Methods(http.MethodPost)
	v1.HandleFunc("/transfers/{id:[0-9]+}/dispute", s.handleRaiseDispute).Methods(http.MethodPost)

	v1.HandleFunc("/admin/parked-events/replay", s.handleReplayParked).Methods(http.MethodPost)
	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
