// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api provides the HTTP API for opspilot.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tombee/opspilot/internal/executor"
	"github.com/tombee/opspilot/internal/httputil"
	"github.com/tombee/opspilot/internal/log"
	"github.com/tombee/opspilot/internal/orchestrator"
	"github.com/tombee/opspilot/internal/registry"
	"github.com/tombee/opspilot/internal/tracing"
	"github.com/tombee/opspilot/pkg/errors"
	"github.com/tombee/opspilot/pkg/runbook"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	Version     string
	MetricsPath string
}

// Interpreter turns a request into a plan.
type Interpreter interface {
	Interpret(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error)
}

// Executor runs a single step.
type Executor interface {
	Execute(ctx context.Context, req executor.Request) *executor.Result
}

// Catalog is the runbook registry as seen by the API.
type Catalog interface {
	Get(id string) (*runbook.UseCaseDefinition, error)
	List() []*runbook.UseCaseDefinition
	Enabled() bool
	Stats() registry.Stats
	Reload(ctx context.Context) (registry.Stats, error)
}

// Router wraps an http.ServeMux with request middleware.
type Router struct {
	mux         *http.ServeMux
	handler     http.Handler
	config      RouterConfig
	interpreter Interpreter
	executor    Executor
	catalog     Catalog
	logger      *slog.Logger
	started     time.Time
}

// NewRouter creates a router with all API endpoints registered.
func NewRouter(cfg RouterConfig, interpreter Interpreter, exec Executor, catalog Catalog, logger *slog.Logger) *Router {
	r := &Router{
		mux:         http.NewServeMux(),
		config:      cfg,
		interpreter: interpreter,
		executor:    exec,
		catalog:     catalog,
		logger:      log.WithComponent(log.OrDefault(logger), "api"),
		started:     time.Now(),
	}

	r.mux.HandleFunc("POST /v1/interpret", r.handleInterpret)
	r.mux.HandleFunc("POST /v1/execute", r.handleExecute)
	r.mux.HandleFunc("GET /v1/runbooks", r.handleListRunbooks)
	r.mux.HandleFunc("GET /v1/runbooks/{id}", r.handleGetRunbook)
	r.mux.HandleFunc("POST /v1/runbooks/reload", r.handleReload)
	r.mux.HandleFunc("GET /v1/health", r.handleHealth)
	if cfg.MetricsPath != "" {
		r.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	// Correlation runs first so the request log carries the id.
	r.handler = tracing.Middleware(log.Middleware(log.OrDefault(logger))(r.mux))
	return r
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// Mux returns the underlying ServeMux for registering additional routes.
func (r *Router) Mux() *http.ServeMux {
	return r.mux
}

func (r *Router) handleInterpret(w http.ResponseWriter, req *http.Request) {
	var body orchestrator.Request
	if err := httputil.DecodeJSON(req, &body); err != nil {
		httputil.WriteErr(w, err)
		return
	}

	resp, err := r.interpreter.Interpret(req.Context(), body)
	if err != nil {
		httputil.WriteErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ExecuteRequest is the request body for POST /v1/execute.
type ExecuteRequest struct {
	TaskID     string            `json:"taskId"`
	StepNumber int               `json:"stepNumber"`
	Entities   map[string]string `json:"entities,omitempty"`
	Service    string            `json:"service,omitempty"`
}

// handleExecute always answers 200 with a Result once the request body is
// well-formed; step failures are reported inside the Result.
func (r *Router) handleExecute(w http.ResponseWriter, req *http.Request) {
	var body ExecuteRequest
	if err := httputil.DecodeJSON(req, &body); err != nil {
		httputil.WriteErr(w, err)
		return
	}
	if strings.TrimSpace(body.TaskID) == "" {
		httputil.WriteErr(w, &errors.ValidationError{Field: "taskId", Message: "taskId is required"})
		return
	}

	res := r.executor.Execute(req.Context(), executor.Request{
		TaskID:     body.TaskID,
		StepNumber: body.StepNumber,
		Entities:   body.Entities,
		Service:    body.Service,
		Caller:     callerFromRequest(req),
	})
	httputil.WriteJSON(w, http.StatusOK, res)
}

// RunbookSummary is one entry of GET /v1/runbooks.
type RunbookSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Steps       int      `json:"steps"`
	Keywords    []string `json:"keywords,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// Summarize builds the listing entry for def.
func Summarize(def *runbook.UseCaseDefinition) RunbookSummary {
	s := RunbookSummary{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Category:    def.Category,
		Steps:       len(def.Steps()),
		Source:      def.Source,
	}
	if def.Classification != nil {
		s.Keywords = def.Classification.Keywords
	}
	return s
}

func (r *Router) handleListRunbooks(w http.ResponseWriter, req *http.Request) {
	defs := r.catalog.List()
	out := make([]RunbookSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, Summarize(def))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"runbooks": out,
		"count":    len(out),
	})
}

func (r *Router) handleGetRunbook(w http.ResponseWriter, req *http.Request) {
	def, err := r.catalog.Get(req.PathValue("id"))
	if err != nil {
		httputil.WriteErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, def)
}

func (r *Router) handleReload(w http.ResponseWriter, req *http.Request) {
	stats, err := r.catalog.Reload(req.Context())
	if err != nil {
		r.logger.Warn("reload requested over API failed", log.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status   string         `json:"status"`
	Version  string         `json:"version,omitempty"`
	Uptime   string         `json:"uptime"`
	Runbooks registry.Stats `json:"runbooks"`
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	status := "ok"
	if !r.catalog.Enabled() {
		status = "degraded"
	}
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:   status,
		Version:  r.config.Version,
		Uptime:   time.Since(r.started).Round(time.Second).String(),
		Runbooks: r.catalog.Stats(),
	})
}
