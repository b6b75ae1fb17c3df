// =============================================================================
// Invoice Batch Import - Aggregator
// =============================================================================
//
// This module groups parsed records into invoice aggregates. All rows that
// share an InvoiceNumber become the lines of one Invoice.
//
// GROUPING LOGIC:
//   - Invoices are kept in the order their number was first seen, so the
//     batch report lists them deterministically.
//   - Header fields (customer, dates) come from the first row of an invoice.
//     Later rows only contribute lines.
//   - Rows with a blank InvoiceNumber are skipped and counted.
//
// NUMERIC FIELDS:
//   Quantity and UnitPrice are parsed as decimals. A blank cell is zero.
//   A cell that is not a number is also zero, and a warning is attached to
//   the invoice so the report shows why its total may be low. Numbers with
//   more than maxDigits significant digits, or an exponent outside
//   +/-maxExponent, are treated as not a number.
//
// =============================================================================

package aggregator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

const (
	maxDigits   = 18
	maxExponent = 18
)

// Set is the ordered result of grouping a batch of records.
type Set struct {
	invoices map[string]*types.Invoice
	order    []string

	// SkippedRows counts records dropped for having no invoice number.
	SkippedRows int
}

// Group builds invoice aggregates from the full set of records.
//
// PARAMETERS:
//   - records: Every parsed record of the batch, in input order.
//
// RETURNS:
//   - A Set holding one Invoice per distinct invoice number.
func Group(records []types.Record) *Set {
	set := &Set{invoices: make(map[string]*types.Invoice)}

	for i, record := range records {
		number := strings.TrimSpace(record.Get(types.ColInvoiceNumber))
		if number == "" {
			set.SkippedRows++
			continue
		}

		inv, exists := set.invoices[number]
		if !exists {
			inv = &types.Invoice{
				InvoiceNumber: number,
				CustomerName:  record.Get(types.ColCustomerName),
				IssueDate:     record.Get(types.ColIssueDate),
				DueDate:       record.Get(types.ColDueDate),
				Lines:         []types.LineItem{},
			}
			set.invoices[number] = inv
			set.order = append(set.order, number)
		}

		row := i + 1
		where := fmt.Sprintf("data row %d", row)
		if record.Line > 0 {
			where = fmt.Sprintf("line %d", record.Line)
		}
		line := types.LineItem{
			Description: record.Get(types.ColDescription),
			Quantity:    parseAmount(inv, where, types.ColQuantity, record.Get(types.ColQuantity)),
			UnitPrice:   parseAmount(inv, where, types.ColUnitPrice, record.Get(types.ColUnitPrice)),
			RowNumber:   row,
			SourceLine:  record.Line,
		}
		inv.Lines = append(inv.Lines, line)
	}

	return set
}

// parseAmount converts a numeric cell, defaulting to zero.
func parseAmount(inv *types.Invoice, where, column, value string) decimal.Decimal {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil || !inRange(d) {
		inv.Warnings = append(inv.Warnings,
			fmt.Sprintf("%s: %s %q is not a number, using 0", where, column, value))
		return decimal.Zero
	}
	return d
}

// inRange rejects values whose rescaling in Total would be unbounded.
func inRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp > maxExponent || exp < -maxExponent {
		return false
	}
	return d.NumDigits() <= maxDigits
}

// Invoices returns the aggregates in first-seen order.
func (s *Set) Invoices() []*types.Invoice {
	out := make([]*types.Invoice, 0, len(s.order))
	for _, number := range s.order {
		out = append(out, s.invoices[number])
	}
	return out
}

// Get returns the aggregate for an invoice number.
func (s *Set) Get(number string) (*types.Invoice, bool) {
	inv, ok := s.invoices[number]
	return inv, ok
}

// Len returns the number of aggregates.
func (s *Set) Len() int {
	return len(s.order)
}
