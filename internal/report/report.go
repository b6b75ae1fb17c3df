// =============================================================================
// Invoice Batch Import - Report Writer
// =============================================================================
//
// This module encodes a batch report for people and machines.
//
// FORMATS:
//   json     The report as returned by the HTTP endpoint.
//   xml      The same fields as a <batchReport> document:
//
//            <batchReport batchId="..." source="batch.csv">
//              <total>2</total>
//              <success>1</success>
//              <failed>1</failed>
//              <details>
//                <invoice invoiceNumber="INV-1" status="created">
//                  <id>...</id>
//                </invoice>
//                <invoice invoiceNumber="INV-2" status="failed">
//                  <error>Customer 'Ghost' not found</error>
//                </invoice>
//              </details>
//              ...
//            </batchReport>
//
//   summary  A plain-text summary for terminals and log files.
//
// =============================================================================

package report

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ginjaninja78/invoice-batch-import/internal/config"
	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

const rule = "================================================================================\n"

// Extension returns the file extension used for a report format.
func Extension(format string) string {
	switch format {
	case config.FormatXML:
		return ".xml"
	case config.FormatSummary:
		return ".txt"
	default:
		return ".json"
	}
}

// Write encodes r in the given format.
func Write(w io.Writer, format string, r *types.Report) error {
	switch format {
	case config.FormatJSON:
		return WriteJSON(w, r)
	case config.FormatXML:
		return WriteXML(w, r)
	case config.FormatSummary:
		return WriteSummary(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *types.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteXML writes r as an XML document with a declaration.
func WriteXML(w io.Writer, r *types.Report) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteSummary writes a human-readable summary of r.
func WriteSummary(w io.Writer, r *types.Report) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Invoice Batch Import - Batch Report\n%s\n", rule)
	fmt.Fprintf(bw, "Batch Information:\n")
	fmt.Fprintf(bw, "  Batch ID:    %s\n", r.BatchID)
	if r.Source != "" {
		fmt.Fprintf(bw, "  Source:      %s\n", r.Source)
	}
	fmt.Fprintf(bw, "  Start Time:  %s\n", formatTime(r.StartedAt))
	fmt.Fprintf(bw, "  End Time:    %s\n", formatTime(r.FinishedAt))
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(bw, "  Duration:    %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(bw, "\nStatistics:\n")
	fmt.Fprintf(bw, "  Total:       %d\n", r.Total)
	fmt.Fprintf(bw, "  Created:     %d\n", r.Success)
	fmt.Fprintf(bw, "  Failed:      %d\n\n", r.Failed)

	writeSection(bw, "Created Invoices:", r.Details, types.StatusCreated, func(d types.Detail) string {
		return fmt.Sprintf("  %-20s id=%s\n", d.InvoiceNumber, d.ID)
	})
	writeSection(bw, "Failed Invoices:", r.Details, types.StatusFailed, func(d types.Detail) string {
		return fmt.Sprintf("  %-20s %s\n", d.InvoiceNumber, d.Error)
	})

	var warned []types.Detail
	for _, d := range r.Details {
		if len(d.Warnings) > 0 {
			warned = append(warned, d)
		}
	}
	if len(warned) > 0 {
		fmt.Fprintf(bw, "Warnings:\n%s", strings.Repeat("-", 80)+"\n")
		for _, d := range warned {
			for _, msg := range d.Warnings {
				fmt.Fprintf(bw, "  %-20s %s\n", d.InvoiceNumber, msg)
			}
		}
		bw.WriteString("\n")
	}

	bw.WriteString(rule)
	bw.WriteString("End of Report\n")
	return bw.Flush()
}

func writeSection(bw *bufio.Writer, title string, details []types.Detail, status types.Status, line func(types.Detail) string) {
	var lines []string
	for _, d := range details {
		if d.Status == status {
			lines = append(lines, line(d))
		}
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(bw, "%s\n%s", title, strings.Repeat("-", 80)+"\n")
	for _, l := range lines {
		bw.WriteString(l)
	}
	bw.WriteString("\n")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// =============================================================================
// BATCH FAILURES AND PREVIEWS
// =============================================================================

// Failure is written instead of a report when a batch is rejected before
// any invoice was processed.
type Failure struct {
	XMLName xml.Name  `json:"-" xml:"batchFailure"`
	Success bool      `json:"success" xml:"success"`
	Source  string    `json:"source,omitempty" xml:"source,attr,omitempty"`
	Error   string    `json:"error" xml:"error"`
	At      time.Time `json:"at" xml:"at"`
}

// NewFailure builds a Failure for err.
func NewFailure(source string, err error, at time.Time) Failure {
	return Failure{Source: source, Error: err.Error(), At: at}
}

// WriteFailure encodes f in the given format.
func WriteFailure(w io.Writer, format string, f Failure) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	case config.FormatXML:
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(f); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	case config.FormatSummary:
		_, err := fmt.Fprintf(w, "Invoice Batch Import - Batch Rejected\n%s\n  Source: %s\n  Time:   %s\n  Error:  %s\n",
			rule, f.Source, formatTime(f.At), f.Error)
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WritePreview prints the invoices a dry run would submit, one per line,
// with their line count and computed total.
func WritePreview(w io.Writer, invoices []*types.Invoice) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INVOICE\tCUSTOMER\tLINES\tTOTAL\tWARNINGS")
	for _, inv := range invoices {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\n",
			inv.InvoiceNumber, inv.CustomerName, len(inv.Lines), inv.Total().StringFixed(2), len(inv.Warnings))
	}
	return tw.Flush()
}
