// =============================================================================
// Invoice Batch Import - Validation
// =============================================================================
//
// This module checks an invoice aggregate for required header fields before
// it is submitted. It is deliberately narrow: business rules (date ordering,
// credit limits, duplicate detection) belong to the persistence backend.
//
// ERROR HANDLING:
//   - All blank required fields are collected into one MissingFieldsError so
//     the report names every problem at once.
//   - A failed check fails only that invoice, never the batch.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// MissingFieldsError lists the required fields that were blank on an invoice.
type MissingFieldsError struct {
	InvoiceNumber string
	Fields        []string
}

// Error implements the error interface.
func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("invoice %s is missing required field(s): %s",
		e.InvoiceNumber, strings.Join(e.Fields, ", "))
}

// =============================================================================
// VALIDATOR
// =============================================================================

// fieldGetters maps the header columns that can be required to their values.
var fieldGetters = map[string]func(*types.Invoice) string{
	types.ColInvoiceNumber: func(inv *types.Invoice) string { return inv.InvoiceNumber },
	types.ColCustomerName:  func(inv *types.Invoice) string { return inv.CustomerName },
	types.ColIssueDate:     func(inv *types.Invoice) string { return inv.IssueDate },
	types.ColDueDate:       func(inv *types.Invoice) string { return inv.DueDate },
}

// Validator checks required-field presence.
type Validator struct {
	// RequiredFields are column names from the invoice header.
	RequiredFields []string
}

// New creates a Validator and rejects field names that are not invoice
// header columns.
//
// PARAMETERS:
//   - fields: Column names such as "CustomerName" or "DueDate".
//
// RETURNS:
//   - A Validator, or an error naming the first unknown column.
func New(fields []string) (*Validator, error) {
	for _, f := range fields {
		if _, ok := fieldGetters[f]; !ok {
			return nil, fmt.Errorf("field %q cannot be required; expected one of %s, %s, %s, %s",
				f, types.ColInvoiceNumber, types.ColCustomerName, types.ColIssueDate, types.ColDueDate)
		}
	}
	return &Validator{RequiredFields: fields}, nil
}

// Check returns a *MissingFieldsError when any required field is blank.
// A nil Validator accepts everything.
func (v *Validator) Check(inv *types.Invoice) error {
	if v == nil {
		return nil
	}

	var missing []string
	for _, field := range v.RequiredFields {
		get, ok := fieldGetters[field]
		if !ok {
			continue
		}
		if strings.TrimSpace(get(inv)) == "" {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		return &MissingFieldsError{InvoiceNumber: inv.InvoiceNumber, Fields: missing}
	}
	return nil
}
