package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/provedorpro/subsync/pkg/access"
	"github.com/provedorpro/subsync/pkg/executor"
	"github.com/provedorpro/subsync/pkg/fault"
	"github.com/provedorpro/subsync/pkg/provision"
	"github.com/provedorpro/subsync/pkg/session"
	"github.com/provedorpro/subsync/pkg/subscriber"
	"github.com/provedorpro/subsync/pkg/sweep"
)

// Engine bundles the core components the HTTP surface drives.
type Engine struct {
	Sessions    *session.Manager
	Dispatcher  *executor.Dispatcher
	Provisioner *provision.Service
	Access      *access.Controller
	Sweeper     *sweep.Sweeper
	Store       *subscriber.MemoryStore
}

// Server is the operator-facing HTTP surface. Every endpoint maps 1:1
// to a core operation and translates faults to HTTP statuses.
type Server struct {
	engine    *Engine
	logger    *slog.Logger
	mux       *http.ServeMux
	server    *http.Server
	validate  *validator.Validate
	startedAt time.Time
}

// NewServer creates the server listening on addr.
func NewServer(addr string, engine *Engine, logger *slog.Logger) *Server {
	s := &Server{
		engine:    engine,
		logger:    logger,
		mux:       http.NewServeMux(),
		validate:  validator.New(),
		startedAt: time.Now(),
	}
	s.registerRoutes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/v1/device/test", s.handleDeviceTest)
	s.mux.HandleFunc("POST /api/v1/subscribers", s.handleProvision)
	s.mux.HandleFunc("POST /api/v1/subscribers/{username}/block", s.handleBlock)
	s.mux.HandleFunc("POST /api/v1/subscribers/{username}/unblock", s.handleUnblock)
	s.mux.HandleFunc("POST /api/v1/sweep", s.handleSweep)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// envelope is the uniform response shape.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func ok(message string, details any) envelope {
	return envelope{Status: "ok", Message: message, Details: details}
}

// handleStatus reports engine health: connectivity, uptime and the most
// recent sweep summary.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	details := map[string]any{
		"connectivity": s.engine.Sessions.Connectivity().String(),
		"uptime":       time.Since(s.startedAt).Round(time.Second).String(),
	}
	if last := s.engine.Sweeper.LastSummary(); last != nil {
		details["lastSweep"] = last
	}
	writeJSON(w, http.StatusOK, ok("", details))
}

// handleDeviceTest checks device reachability by querying its identity.
func (s *Server) handleDeviceTest(w http.ResponseWriter, r *http.Request) {
	identity, err := s.engine.Dispatcher.Identity(r.Context())
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("device reachable", map[string]string{"identity": identity}))
}

// provisionRequest is the create-subscriber payload.
type provisionRequest struct {
	ID       string `json:"id" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Plan     struct {
		Name          string `json:"name" validate:"required"`
		DownloadLimit string `json:"downloadLimit" validate:"required"`
		UploadLimit   string `json:"uploadLimit" validate:"required"`
	} `json:"plan" validate:"required"`
}

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "invalid JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: err.Error()})
		return
	}

	sub := subscriber.Subscriber{
		ID:               req.ID,
		Username:         req.Username,
		CredentialSecret: req.Password,
		PlanRef:          req.Plan.Name,
	}
	plan := subscriber.Plan{
		Name:          req.Plan.Name,
		DownloadLimit: req.Plan.DownloadLimit,
		UploadLimit:   req.Plan.UploadLimit,
	}

	res, err := s.engine.Provisioner.Provision(r.Context(), sub, plan)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}

	// The daemon's store tracks what it has provisioned so the sweep
	// covers it.
	sub.DeviceState = subscriber.StateActive
	s.engine.Store.PutSubscriber(sub)
	s.engine.Store.PutPlan(plan)

	status := http.StatusOK
	if res.CredentialCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, ok("subscriber provisioned", res))
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if err := s.engine.Access.Block(r.Context(), username); err != nil {
		s.writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("subscriber blocked", map[string]string{"username": username}))
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if err := s.engine.Access.Unblock(r.Context(), username); err != nil {
		s.writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("subscriber unblocked", map[string]string{"username": username}))
}

// handleSweep triggers one reconciliation pass outside the timer.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.Sweeper.RunOnce(r.Context())
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("sweep completed", summary))
}

// writeFault translates a core error to an HTTP response.
func (s *Server) writeFault(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	s.logger.WarnContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"kind", kind.String(),
		"error", err)

	writeJSON(w, httpStatus(kind), envelope{
		Status:  "error",
		Message: err.Error(),
		Details: map[string]string{"kind": kind.String()},
	})
}

// httpStatus maps fault kinds to HTTP statuses: caller faults are 4xx,
// device/transport faults are 5xx.
func httpStatus(kind fault.Kind) int {
	switch kind {
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindDuplicate:
		return http.StatusConflict
	case fault.KindAuth, fault.KindTransport:
		return http.StatusBadGateway
	case fault.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
