package cmd

import (
	"context"
	"fmt"

	"github.com/ginjaninja78/invoice-batch-import/internal/config"
	"github.com/ginjaninja78/invoice-batch-import/internal/logger"
	"github.com/ginjaninja78/invoice-batch-import/internal/orchestrator"
	"github.com/ginjaninja78/invoice-batch-import/internal/resolver"
	"github.com/ginjaninja78/invoice-batch-import/internal/store"
	"github.com/ginjaninja78/invoice-batch-import/internal/submitter"
	"github.com/ginjaninja78/invoice-batch-import/internal/validation"
)

// buildPipeline opens the configured store and wires the orchestrator on
// top of it. The caller closes the returned backend.
func buildPipeline(ctx context.Context, cfg *config.Config, log *logger.Logger) (*orchestrator.Orchestrator, store.Backend, error) {
	validator, err := validation.New(cfg.Import.RequiredFields)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid import.required_fields: %w", err)
	}

	backend, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, nil, err
	}

	sub := submitter.New(resolver.New(backend, log), backend, submitter.Options{
		Validator: validator,
		Timeout:   cfg.Import.SubmitTimeout,
		Logger:    log,
	})
	orch := orchestrator.New(sub, orchestrator.Options{
		Import: cfg.Import,
		Pinger: backend,
		Logger: log,
	})
	return orch, backend, nil
}
