// =============================================================================
// Invoice Batch Import - Aggregate Submitter
// =============================================================================
//
// This module submits one invoice aggregate to the persistence backend.
//
// SUBMISSION STEPS:
//   1. Check required fields
//   2. Resolve the customer name to a customer id
//   3. Compute the total and build the payload
//   4. Create the invoice
//
// Every failure, including a timeout or a panic in a collaborator, is turned
// into a failed Outcome. Nothing is retried.
//
// =============================================================================

package submitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ginjaninja78/invoice-batch-import/internal/logger"
	"github.com/ginjaninja78/invoice-batch-import/internal/types"
	"github.com/ginjaninja78/invoice-batch-import/internal/validation"
)

// InvoiceCreator persists one invoice atomically and returns its new id.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, payload types.Payload) (string, error)
}

// Resolver turns a customer name into a customer id.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Options configures a Submitter.
type Options struct {
	// Validator checks required fields. nil skips the check.
	Validator *validation.Validator

	// Timeout bounds lookup and persistence for one invoice. 0 means no
	// bound beyond the caller's context.
	Timeout time.Duration

	Logger *logger.Logger
}

// Submitter submits invoice aggregates one at a time. It is safe for
// concurrent use when its collaborators are.
type Submitter struct {
	resolver  Resolver
	creator   InvoiceCreator
	validator *validation.Validator
	timeout   time.Duration
	log       *logger.Logger
}

// New creates a Submitter.
func New(resolver Resolver, creator InvoiceCreator, opts Options) *Submitter {
	return &Submitter{
		resolver:  resolver,
		creator:   creator,
		validator: opts.Validator,
		timeout:   opts.Timeout,
		log:       logger.OrNop(opts.Logger),
	}
}

// =============================================================================
// PAYLOAD
// =============================================================================

// BuildPayload builds the persistence payload for inv. The total is the
// exact decimal sum of quantity x unit price over every line.
func BuildPayload(inv *types.Invoice, customerID string) types.Payload {
	lines := make([]types.PayloadLine, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lines = append(lines, types.PayloadLine{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.Amount(),
		})
	}

	return types.Payload{
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    customerID,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		Status:        types.StatusDraft,
		TotalAmount:   inv.Total(),
		Lines:         lines,
	}
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit runs the submission steps for inv and never returns an error: the
// Outcome carries either the new invoice id or the reason it failed.
// Warnings collected while grouping are carried into the Outcome.
func (s *Submitter) Submit(ctx context.Context, inv *types.Invoice) (out types.Outcome) {
	log := s.log.With("invoice_number", inv.InvoiceNumber)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while submitting invoice", "panic", r)
			out = types.Failed(inv.InvoiceNumber, fmt.Errorf("internal error: %v", r))
		}
		out.Warnings = inv.Warnings
	}()

	id, err := s.submit(ctx, inv)
	if err != nil {
		log.Warn("invoice failed", "error", err)
		return types.Failed(inv.InvoiceNumber, err)
	}

	log.Info("invoice created", "invoice_id", id, "lines", len(inv.Lines))
	return types.Created(inv.InvoiceNumber, id)
}

func (s *Submitter) submit(ctx context.Context, inv *types.Invoice) (string, error) {
	if err := s.validator.Check(inv); err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	customerID, err := s.resolver.Resolve(ctx, inv.CustomerName)
	if err != nil {
		var nf *types.ReferenceNotFoundError
		if errors.As(err, &nf) {
			return "", nf
		}
		return "", &types.SubmissionError{InvoiceNumber: inv.InvoiceNumber, Err: err}
	}

	payload := BuildPayload(inv, customerID)

	id, err := s.creator.CreateInvoice(ctx, payload)
	if err != nil {
		return "", &types.SubmissionError{InvoiceNumber: inv.InvoiceNumber, Err: err}
	}
	if id == "" {
		return "", &types.SubmissionError{InvoiceNumber: inv.InvoiceNumber, Err: errors.New("backend returned no invoice id")}
	}
	return id, nil
}
