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

// Package executor runs a single step of a use case on demand.
//
// Each execution moves through three phases: the downstream service is
// resolved, then the step, then the step is dispatched by variant. Local
// variants never reach the network. Every outcome, including configuration
// mistakes and cancellation, is reported as a well-formed Result.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tombee/opspilot/internal/jq"
	"github.com/tombee/opspilot/internal/log"
	"github.com/tombee/opspilot/internal/translate"
	"github.com/tombee/opspilot/pkg/errors"
	"github.com/tombee/opspilot/pkg/extract"
	"github.com/tombee/opspilot/pkg/httpclient"
	"github.com/tombee/opspilot/pkg/runbook"
)

// TracerName is the instrumentation scope of execution spans.
const TracerName = "opspilot/executor"

// errCancelled is reported when the caller abandons an execution.
var errCancelled = errors.New("execution cancelled")

// Catalog resolves use case definitions by id.
type Catalog interface {
	Get(id string) (*runbook.UseCaseDefinition, error)
}

// Service is one downstream target.
type Service struct {
	BaseURL string
	Timeout time.Duration

	// RateLimit is the sustained requests per second (0 = unlimited)
	RateLimit float64
	Burst     int
}

type service struct {
	name    string
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
}

// Request identifies the step to run and the values to run it with.
type Request struct {
	TaskID     string            `json:"taskId"`
	StepNumber int               `json:"stepNumber"`
	Entities   map[string]string `json:"entities,omitempty"`

	// Service overrides the downstream target for this execution
	Service string `json:"service,omitempty"`

	Caller Caller `json:"-"`
}

// Result is the outcome of one execution. Error keeps the technical text
// verbatim; UserMessage and ErrorCategory come from the error translator.
type Result struct {
	Success         bool        `json:"success"`
	TaskID          string      `json:"taskId"`
	StepNumber      int         `json:"stepNumber"`
	StepDescription string      `json:"stepDescription,omitempty"`
	Method          string      `json:"method,omitempty"`
	Service         string      `json:"service,omitempty"`
	StatusCode      int         `json:"statusCode,omitempty"`
	ResponseBody    string      `json:"responseBody,omitempty"`
	Error           string      `json:"error,omitempty"`
	UserMessage     string      `json:"userMessage,omitempty"`
	ErrorCategory   string      `json:"errorCategory,omitempty"`
	Kind            errors.Kind `json:"kind,omitempty"`
	ElapsedMs       int64       `json:"elapsedMs"`
}

// Engine executes steps. It holds no per-execution state and is safe for
// concurrent use; concurrent executions only share the HTTP client and the
// per-service rate limiters.
type Engine struct {
	catalog        Catalog
	services       map[string]*service
	defaultService string
	translator     *translate.Translator
	client         *http.Client
	asserter       *jq.Asserter
	extractor      *extract.Extractor
	tracer         trace.Tracer
	logger         *slog.Logger
	maxBodySize    int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHTTPClient replaces the downstream HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		e.client = client
	}
}

// WithDefaultService names the service used when neither the request nor
// the use case selects one.
func WithDefaultService(name string) Option {
	return func(e *Engine) {
		e.defaultService = name
	}
}

// WithTracer sets the tracer used for execution spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithMaxBodySize bounds how much of a downstream response is read.
func WithMaxBodySize(n int64) Option {
	return func(e *Engine) {
		e.maxBodySize = n
	}
}

// New creates an Engine for the given services. A nil translator uses the
// built-in table.
func New(catalog Catalog, services map[string]Service, translator *translate.Translator, opts ...Option) (*Engine, error) {
	e := &Engine{
		catalog:     catalog,
		services:    make(map[string]*service, len(services)),
		translator:  translator,
		asserter:    jq.NewAsserter(0, 0),
		extractor:   extract.New(),
		maxBodySize: jq.DefaultMaxInputSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = log.WithComponent(log.OrDefault(e.logger), "executor")
	if e.translator == nil {
		e.translator = translate.Default()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(TracerName)
	}

	longest := time.Duration(0)
	for name, svc := range services {
		if svc.BaseURL == "" {
			return nil, &errors.ConfigError{Key: "services." + name + ".base_url", Reason: "is required"}
		}
		s := &service{
			name:    name,
			baseURL: strings.TrimRight(svc.BaseURL, "/"),
			timeout: svc.Timeout,
		}
		if s.timeout <= 0 {
			s.timeout = httpclient.DefaultConfig().Timeout
		}
		if svc.RateLimit > 0 {
			burst := svc.Burst
			if burst < 1 {
				burst = 1
			}
			s.limiter = rate.NewLimiter(rate.Limit(svc.RateLimit), burst)
		}
		if s.timeout > longest {
			longest = s.timeout
		}
		e.services[name] = s
	}

	if e.client == nil {
		cfg := httpclient.DefaultConfig()
		cfg.Logger = e.logger
		if longest > cfg.Timeout {
			cfg.Timeout = longest
		}
		client, err := httpclient.New(cfg)
		if err != nil {
			return nil, err
		}
		e.client = client
	}

	return e, nil
}

// Services returns the configured service names.
func (e *Engine) Services() []string {
	names := make([]string, 0, len(e.services))
	for name := range e.services {
		names = append(names, name)
	}
	return names
}

// Execute runs one step. It never returns nil and never panics on bad
// input; failures are described in the Result.
func (e *Engine) Execute(ctx context.Context, req Request) *Result {
	start := time.Now()
	res := &Result{TaskID: req.TaskID, StepNumber: req.StepNumber}

	ctx, span := e.tracer.Start(ctx, "execute step",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("opspilot.task_id", req.TaskID),
			attribute.Int("opspilot.step_number", req.StepNumber),
		))
	defer span.End()

	logger := log.WithStep(e.logger, req.TaskID, req.StepNumber)

	err := e.run(ctx, req, res)
	res.ElapsedMs = time.Since(start).Milliseconds()

	if err != nil {
		e.fail(res, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Error)
		logger.WarnContext(ctx, "step failed",
			slog.String("kind", string(res.Kind)),
			slog.String(log.ServiceKey, res.Service),
			slog.Int64(log.DurationKey, res.ElapsedMs),
			log.Error(err))
	} else {
		res.Success = true
		span.SetStatus(codes.Ok, "")
		logger.InfoContext(ctx, "step executed",
			slog.String("method", res.Method),
			slog.String(log.ServiceKey, res.Service),
			slog.Int("status", res.StatusCode),
			slog.Int64(log.DurationKey, res.ElapsedMs))
	}

	span.SetAttributes(
		attribute.String("opspilot.method", res.Method),
		attribute.Bool("opspilot.success", res.Success),
	)
	if res.StatusCode != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
	}
	recordExecution(req.TaskID, res.Method, res.Success, time.Since(start).Seconds())

	return res
}

func (e *Engine) run(ctx context.Context, req Request, res *Result) error {
	if ctx.Err() != nil {
		return errCancelled
	}

	// The definition is looked up once; a missing one only matters after
	// the service has been resolved.
	def, defErr := e.catalog.Get(req.TaskID)

	svc, err := e.resolveService(req, def)
	if err != nil {
		return err
	}
	if svc != nil {
		res.Service = svc.name
	}

	if defErr != nil {
		return stepNotFound(req, defErr)
	}
	step, err := def.StepByNumber(req.StepNumber)
	if err != nil {
		return stepNotFound(req, err)
	}

	values := mergeValues(req.Caller.Placeholders(), req.Entities)
	res.StepDescription = runbook.Resolve(step.Description, values)
	res.Method = string(step.Method)

	action, err := step.Action()
	if err != nil {
		return &errors.ConfigError{
			Key:    fmt.Sprintf("%s.steps.%d", def.ID, step.StepNumber),
			Reason: "step cannot be executed",
			Cause:  err,
		}
	}
	res.Method = string(action.Method())

	switch a := action.(type) {
	case runbook.LocalMessage:
		msg := runbook.Resolve(a.Message, values)
		res.StepDescription = msg
		res.ResponseBody = msg
		return nil

	case runbook.HeaderCheck:
		return e.checkHeader(a, req.Caller, values, res)

	case runbook.EntityValidation:
		return e.validateEntity(a, def, req.Entities, res)

	case runbook.HTTPCall:
		if svc == nil {
			return &errors.ConfigError{
				Key:    "default_service",
				Reason: fmt.Sprintf("step %d calls a downstream API but no downstream service is configured", step.StepNumber),
			}
		}
		return e.call(ctx, svc, def, a, req.Caller, values, res)
	}

	return &errors.ConfigError{Reason: fmt.Sprintf("unsupported step method %s", action.Method())}
}

// resolveService picks the target: the request, then the use case
// override, then the configured default. A nil service with a nil error
// means none is configured, which only local steps tolerate.
func (e *Engine) resolveService(req Request, def *runbook.UseCaseDefinition) (*service, error) {
	name := req.Service
	if name == "" && def != nil {
		name = def.DownstreamServiceOverride
	}
	if name == "" {
		name = e.defaultService
	}
	if name == "" {
		return nil, nil
	}

	svc, ok := e.services[name]
	if !ok {
		return nil, &errors.ConfigError{
			Key:    "services",
			Reason: fmt.Sprintf("unknown downstream service %q (step %d)", name, req.StepNumber),
		}
	}
	return svc, nil
}

func stepNotFound(req Request, cause error) error {
	return &errors.ConfigError{
		Key:    "step",
		Reason: fmt.Sprintf("step %d not found for task %s", req.StepNumber, req.TaskID),
		Cause:  cause,
	}
}

func (e *Engine) fail(res *Result, err error) {
	res.Success = false
	res.Error = err.Error()
	res.Kind = errors.KindOf(err)

	var apiErr *errors.APIError
	if errors.As(err, &apiErr) {
		res.StatusCode = apiErr.StatusCode
		res.ResponseBody = apiErr.Body
	}
	var accessErr *errors.AccessError
	if errors.As(err, &accessErr) {
		res.StatusCode = http.StatusForbidden
	}

	t := e.translator.Translate(res.Error)
	res.UserMessage = t.UserMessage
	res.ErrorCategory = t.Category
}

// mergeValues overlays entities on the caller placeholders. Keys owned by
// the caller context are never taken from entities.
func mergeValues(caller, entities map[string]string) map[string]string {
	out := make(map[string]string, len(caller)+len(entities))
	for k, v := range entities {
		if !callerKeys[k] {
			out[k] = v
		}
	}
	for k, v := range caller {
		out[k] = v
	}
	return out
}
