// =============================================================================
// Invoice Batch Import - Batch Orchestrator
// =============================================================================
//
// This module drives one batch through the pipeline:
//
//   Parsing -> Aggregating -> Processing -> Reporting
//
// Parsing and Aggregating failures abort the batch and return an error with
// no report. Once Processing starts, every invoice gets an outcome and a
// report is always returned, even when every invoice fails.
//
// CONCURRENCY:
//   Invoices are submitted by at most Workers goroutines (1 by default, which
//   is strictly sequential). Each outcome is stored at the invoice's index,
//   so report order is input order regardless of completion order.
//
// CANCELLATION:
//   The context is checked before each invoice. Invoices not yet started
//   when it is cancelled are recorded as failed with ErrBatchCancelled.
//
// =============================================================================

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/invoice-batch-import/internal/aggregator"
	"github.com/ginjaninja78/invoice-batch-import/internal/config"
	"github.com/ginjaninja78/invoice-batch-import/internal/ingest"
	"github.com/ginjaninja78/invoice-batch-import/internal/logger"
	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

// ErrBatchCancelled marks invoices skipped because the batch was cancelled.
var ErrBatchCancelled = errors.New("batch cancelled")

// State is a stage of the batch pipeline.
type State string

const (
	StateParsing     State = "Parsing"
	StateAggregating State = "Aggregating"
	StateProcessing  State = "Processing"
	StateReporting   State = "Reporting"
)

// Source is one input file.
type Source struct {
	// Name is the file name. Its extension selects the parser.
	Name   string
	Reader io.Reader
}

// Submitter submits a single invoice and reports the outcome.
type Submitter interface {
	Submit(ctx context.Context, inv *types.Invoice) types.Outcome
}

// Pinger checks that the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures an Orchestrator.
//
// Import.SubmitTimeout also bounds the Pinger check.
type Options struct {
	Import config.ImportSettings

	// Pinger, when set, is checked once before Processing.
	Pinger Pinger

	Logger *logger.Logger

	// Now is used for report timestamps. Defaults to time.Now.
	Now func() time.Time
}

type Orchestrator struct {
	submitter Submitter
	settings  config.ImportSettings
	pinger    Pinger
	log       *logger.Logger
	now       func() time.Time
}

// New creates an Orchestrator.
func New(submitter Submitter, opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		submitter: submitter,
		settings:  opts.Import,
		pinger:    opts.Pinger,
		log:       logger.OrNop(opts.Logger),
		now:       now,
	}
}

// Run processes one batch.
//
// RETURNS:
//   - The final report once Processing has started.
//   - *types.ParseError or *types.EmptyInputError when the input is unusable.
//   - *types.OrchestratorFault when the pipeline cannot start Processing.
func (o *Orchestrator) Run(ctx context.Context, src Source) (*types.Report, error) {
	batchID := uuid.NewString()
	startedAt := o.now()
	log := o.log.With("batch_id", batchID, "source", src.Name)

	set, err := o.aggregate(ctx, log, src)
	if err != nil {
		return nil, err
	}

	log.Info("batch state", "state", StateProcessing, "invoices", set.Len())
	if err := o.ping(ctx); err != nil {
		log.Error("persistence backend unreachable", "error", err)
		return nil, &types.OrchestratorFault{Stage: string(StateProcessing), Err: err}
	}
	outcomes := o.process(ctx, set.Invoices())

	log.Info("batch state", "state", StateReporting)
	report := types.NewReport(batchID, src.Name, startedAt)
	for _, out := range outcomes {
		report.Add(out)
	}
	report.FinishedAt = o.now()

	log.Info("batch complete",
		"total", report.Total, "success", report.Success, "failed", report.Failed,
		"duration", report.FinishedAt.Sub(startedAt))
	return report, nil
}

// DryRun parses and groups the input without submitting anything.
func (o *Orchestrator) DryRun(ctx context.Context, src Source) (*aggregator.Set, error) {
	log := o.log.With("source", src.Name, "dry_run", true)
	return o.aggregate(ctx, log, src)
}

func (o *Orchestrator) aggregate(ctx context.Context, log *logger.Logger, src Source) (*aggregator.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.OrchestratorFault{Stage: string(StateParsing), Err: err}
	}

	log.Info("batch state", "state", StateParsing)
	records, err := ingest.ReadRecords(src.Name, src.Reader, o.settings)
	if err != nil {
		log.Warn("batch rejected", "state", StateParsing, "error", err)
		return nil, batchError(StateParsing, err)
	}

	log.Info("batch state", "state", StateAggregating, "records", len(records))
	set := aggregator.Group(records)
	if set.SkippedRows > 0 {
		log.Warn("rows without invoice number skipped", "rows", set.SkippedRows)
	}
	if set.Len() == 0 {
		log.Warn("batch rejected", "state", StateAggregating, "error", "no invoice numbers")
		return nil, &types.EmptyInputError{
			Reason: fmt.Sprintf("all %d data rows lack %s", set.SkippedRows, types.ColInvoiceNumber),
		}
	}
	return set, nil
}

// ping checks the backend within the per-invoice submit timeout.
func (o *Orchestrator) ping(ctx context.Context) error {
	if o.pinger == nil {
		return nil
	}
	if o.settings.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.settings.SubmitTimeout)
		defer cancel()
	}
	return o.pinger.Ping(ctx)
}

// process submits every invoice and returns outcomes in input order.
func (o *Orchestrator) process(ctx context.Context, invoices []*types.Invoice) []types.Outcome {
	outcomes := make([]types.Outcome, len(invoices))

	workers := o.settings.Workers
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for i, inv := range invoices {
		if ctx.Err() != nil {
			outcomes[i] = cancelled(inv)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = cancelled(inv)
				return nil
			}
			outcomes[i] = o.submitter.Submit(ctx, inv)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func cancelled(inv *types.Invoice) types.Outcome {
	out := types.Failed(inv.InvoiceNumber, ErrBatchCancelled)
	out.Warnings = inv.Warnings
	return out
}

// batchError keeps input errors as they are and turns anything else into
// an OrchestratorFault.
func batchError(state State, err error) error {
	var perr *types.ParseError
	var empty *types.EmptyInputError
	if errors.As(err, &perr) || errors.As(err, &empty) {
		return err
	}
	return &types.OrchestratorFault{Stage: string(state), Err: err}
}
