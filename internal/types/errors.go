package types

import (
	"fmt"
	"strings"
)

// ParseError reports input that is not well-formed delimited text or an
// unreadable spreadsheet. It is fatal for the whole batch.
type ParseError struct {
	// Line is the 1-indexed input line where parsing stopped, 0 if unknown.
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed input at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed input: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyInputError reports input that yields nothing to import: a header but
// no data rows, or data rows that all lack an invoice number.
type EmptyInputError struct {
	// Reason is set when data rows exist but none could be used.
	Reason string
}

func (e *EmptyInputError) Error() string {
	if e.Reason != "" {
		return "input contains no invoices: " + e.Reason
	}
	return "input contains no data rows"
}

// ReferenceNotFoundError reports a customer name with no matching customer.
type ReferenceNotFoundError struct {
	Name string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("Customer '%s' not found", e.Name)
}

// SubmissionError wraps a persistence failure for one invoice.
type SubmissionError struct {
	InvoiceNumber string
	Err           error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("create invoice %s: %v", e.InvoiceNumber, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// OrchestratorFault is an unexpected batch-level failure raised before any
// invoice was attempted. No partial report accompanies it.
type OrchestratorFault struct {
	Stage string
	Err   error
}

func (e *OrchestratorFault) Error() string {
	return fmt.Sprintf("%s: %v", strings.ToLower(e.Stage), e.Err)
}

func (e *OrchestratorFault) Unwrap() error { return e.Err }
