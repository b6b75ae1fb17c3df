// =============================================================================
// Invoice Batch Import - Shared Types
// =============================================================================
//
// This package contains the types shared by every stage of the import
// pipeline. Keeping them here avoids import cycles between:
//   - csvparser / xlsxparser (produce Records)
//   - aggregator             (produces Invoices)
//   - submitter              (produces Payloads and Outcomes)
//   - orchestrator / report  (produce and encode Reports)
//
// =============================================================================

package types

import (
	"encoding/xml"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT COLUMNS
// =============================================================================

// Recognized column headers of the import file. Unknown columns are ignored.
const (
	ColInvoiceNumber = "InvoiceNumber"
	ColCustomerName  = "CustomerName"
	ColIssueDate     = "IssueDate"
	ColDueDate       = "DueDate"
	ColDescription   = "Description"
	ColQuantity      = "Quantity"
	ColUnitPrice     = "UnitPrice"
)

// StatusDraft is the status every imported invoice is created with.
const StatusDraft = "Draft"

// =============================================================================
// RAW RECORD
// =============================================================================

// Record is one parsed data row keyed by header name.
type Record struct {
	Fields map[string]string

	// Line is the 1-indexed input line (or sheet row) the record starts on.
	// 0 when the source position is unknown.
	Line int
}

// Get returns the value for a column, or "" when the column is absent.
func (r Record) Get(column string) string {
	return r.Fields[column]
}

// =============================================================================
// INVOICE AGGREGATE
// =============================================================================

// LineItem is a single invoice line. It is owned by its parent Invoice.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal

	// RowNumber is the 1-indexed data row the line came from.
	RowNumber int

	// SourceLine is the input line or sheet row of that data row, 0 if unknown.
	SourceLine int
}

// Amount returns Quantity x UnitPrice.
func (l LineItem) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Invoice is an invoice reconstructed from one or more rows sharing an
// invoice number. InvoiceNumber never changes once the aggregate exists.
type Invoice struct {
	InvoiceNumber string
	CustomerName  string
	IssueDate     string
	DueDate       string
	Lines         []LineItem

	// Warnings collects line-level notes such as a non-numeric quantity that
	// was defaulted to zero. They never fail the invoice.
	Warnings []string
}

// Total returns the exact decimal sum of every line amount.
func (inv *Invoice) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range inv.Lines {
		total = total.Add(line.Amount())
	}
	return total
}

// Customer is a row returned by the customer lookup collaborator.
type Customer struct {
	ID   string
	Name string
}

// =============================================================================
// SUBMISSION PAYLOAD
// =============================================================================

// Payload is what the persistence collaborator receives for one invoice.
type Payload struct {
	InvoiceNumber string          `json:"invoiceNumber"`
	CustomerID    string          `json:"customerId"`
	IssueDate     string          `json:"issueDate"`
	DueDate       string          `json:"dueDate"`
	Status        string          `json:"status"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Lines         []PayloadLine   `json:"lines"`
}

// PayloadLine is a line item as sent to the persistence collaborator.
type PayloadLine struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// =============================================================================
// OUTCOMES AND REPORT
// =============================================================================

// Status is the per-invoice outcome status.
type Status string

const (
	StatusCreated Status = "created"
	StatusFailed  Status = "failed"
)

// Outcome is the result of submitting one invoice. Exactly one of ID and
// Err is set: ID on success, Err on failure.
type Outcome struct {
	InvoiceNumber string
	Status        Status
	ID            string
	Err           error
	Warnings      []string
}

// Created builds a successful outcome.
func Created(invoiceNumber, id string) Outcome {
	return Outcome{InvoiceNumber: invoiceNumber, Status: StatusCreated, ID: id}
}

// Failed builds a failed outcome.
func Failed(invoiceNumber string, err error) Outcome {
	return Outcome{InvoiceNumber: invoiceNumber, Status: StatusFailed, Err: err}
}

// Detail is one entry of Report.Details.
type Detail struct {
	InvoiceNumber string   `json:"invoiceNumber" xml:"invoiceNumber,attr"`
	Status        Status   `json:"status" xml:"status,attr"`
	ID            string   `json:"id,omitempty" xml:"id,omitempty"`
	Error         string   `json:"error,omitempty" xml:"error,omitempty"`
	Warnings      []string `json:"warnings,omitempty" xml:"warning,omitempty"`
}

// Report is the final per-batch result. It is returned once and not mutated
// afterwards; Total always equals Success + Failed and len(Details).
type Report struct {
	XMLName    xml.Name  `json:"-" xml:"batchReport"`
	BatchID    string    `json:"batchId" xml:"batchId,attr"`
	Source     string    `json:"source,omitempty" xml:"source,attr,omitempty"`
	Total      int       `json:"total" xml:"total"`
	Success    int       `json:"success" xml:"success"`
	Failed     int       `json:"failed" xml:"failed"`
	Details    []Detail  `json:"details" xml:"details>invoice"`
	StartedAt  time.Time `json:"startedAt" xml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" xml:"finishedAt"`
}

// NewReport starts an empty report for a batch.
func NewReport(batchID, source string, startedAt time.Time) *Report {
	return &Report{
		BatchID:   batchID,
		Source:    source,
		Details:   []Detail{},
		StartedAt: startedAt,
	}
}

// Add records one outcome and updates the counters.
func (r *Report) Add(o Outcome) {
	d := Detail{
		InvoiceNumber: o.InvoiceNumber,
		Status:        o.Status,
		Warnings:      o.Warnings,
	}
	switch o.Status {
	case StatusCreated:
		d.ID = o.ID
		r.Success++
	default:
		d.Status = StatusFailed
		if o.Err != nil {
			d.Error = o.Err.Error()
		} else {
			d.Error = "unknown error"
		}
		r.Failed++
	}
	r.Total++
	r.Details = append(r.Details, d)
}
