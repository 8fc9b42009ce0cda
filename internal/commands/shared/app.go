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


package shared

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/tombee/opspilot/internal/config"
	"github.com/tombee/opspilot/internal/executor"
	"github.com/tombee/opspilot/internal/log"
	"github.com/tombee/opspilot/internal/orchestrator"
	"github.com/tombee/opspilot/internal/registry"
	"github.com/tombee/opspilot/internal/translate"
	"github.com/tombee/opspilot/pkg/classify"
	"github.com/tombee/opspilot/pkg/expression"
	"github.com/tombee/opspilot/pkg/plan"
)

// App is the set of components a command works with.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Registry     *registry.Registry
	Orchestrator *orchestrator.Orchestrator
	Executor     *executor.Engine
}

// LoadConfig resolves and loads the configuration named by --config.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.ResolvePath(GetConfigPath()))
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger. CLI commands other than serve log
// at warn unless --verbose is set; --quiet limits output to errors.
func NewLogger(cfg *config.Config, interactive bool) *slog.Logger {
	lc := cfg.Log
	if lc.Output == nil {
		lc.Output = os.Stderr
	}
	switch {
	case GetQuiet():
		lc.Level = "error"
	case GetVerbose():
		lc.Level = "debug"
	case interactive && log.ParseLevel(lc.Level) < slog.LevelWarn:
		lc.Level = "warn"
	}
	if interactive && lc.Format == log.FormatJSON && IsTerminal(lc.Output) {
		lc.Format = log.FormatText
	}
	return log.New(&lc)
}

// Build wires the registry, orchestrator and executor from cfg and performs
// the initial runbook load. A failed load is logged; the registry stays
// empty and the heuristic classifier still answers.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	reg := registry.New(registry.Config{
		Enabled:        cfg.Runbooks.Enabled,
		Dir:            cfg.Runbooks.Dir,
		Pattern:        cfg.Runbooks.Pattern,
		Watch:          cfg.Runbooks.Watch,
		DebounceWindow: cfg.Runbooks.Debounce,
	}, logger)
	if err := reg.Load(ctx); err != nil {
		logger.Warn("starting with an empty runbook catalog", log.Error(err))
	}

	orch := orchestrator.New(reg,
		plan.New(expression.New(), plan.WithLogger(logger)),
		classify.NewScorer(logger),
		orchestrator.WithLogger(logger),
		orchestrator.WithHeuristicFallback(cfg.Classifier.HeuristicFallback),
	)

	services := make(map[string]executor.Service, len(cfg.Services))
	for name, svc := range cfg.Services {
		services[name] = executor.Service{
			BaseURL:   svc.BaseURL,
			Timeout:   svc.Timeout,
			RateLimit: svc.RateLimit,
			Burst:     svc.Burst,
		}
	}

	var translator *translate.Translator
	if cfg.Errors.Path != "" {
		translator = translate.LoadOrDefault(cfg.Errors.Path, logger)
	}

	exec, err := executor.New(reg, services, translator,
		executor.WithLogger(logger),
		executor.WithDefaultService(cfg.DefaultService),
	)
	if err != nil {
		return nil, NewConfigError("failed to configure downstream services", err)
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		Registry:     reg,
		Orchestrator: orch,
		Executor:     exec,
	}, nil
}

// Setup loads configuration and builds the App for a one-shot command.
func Setup(ctx context.Context, stderr io.Writer) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Log.Output = stderr
	return Build(ctx, cfg, NewLogger(cfg, true))
}
