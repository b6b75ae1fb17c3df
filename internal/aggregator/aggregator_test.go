package aggregator

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

func rec(number, customer, desc, qty, price string) types.Record {
	return types.Record{Fields: map[string]string{
		types.ColInvoiceNumber: number,
		types.ColCustomerName:  customer,
		types.ColIssueDate:     "2024-01-01",
		types.ColDueDate:       "2024-01-31",
		types.ColDescription:   desc,
		types.ColQuantity:      qty,
		types.ColUnitPrice:     price,
	}}
}

func TestGroupMergesRowsByInvoiceNumber(t *testing.T) {
	set := Group([]types.Record{
		rec("INV-1", "Acme", "Widget", "2", "10.00"),
		rec("INV-1", "Acme", "Gadget", "1", "5.00"),
	})

	if set.Len() != 1 {
		t.Fatalf("Len: want=1 got=%d", set.Len())
	}
	inv, ok := set.Get("INV-1")
	if !ok {
		t.Fatalf("Get(INV-1): not found")
	}
	if len(inv.Lines) != 2 {
		t.Fatalf("lines: want=2 got=%d", len(inv.Lines))
	}
	if want := decimal.RequireFromString("25.00"); !inv.Total().Equal(want) {
		t.Fatalf("total: want=%s got=%s", want, inv.Total())
	}
	if inv.Lines[0].Description != "Widget" || inv.Lines[1].Description != "Gadget" {
		t.Fatalf("line order: got=%q,%q", inv.Lines[0].Description, inv.Lines[1].Description)
	}
}

func TestGroupKeepsFirstSeenOrder(t *testing.T) {
	set := Group([]types.Record{
		rec("INV-3", "C", "a", "1", "1"),
		rec("INV-1", "A", "b", "1", "1"),
		rec("INV-3", "C", "c", "1", "1"),
		rec("INV-2", "B", "d", "1", "1"),
	})

	var got []string
	for _, inv := range set.Invoices() {
		got = append(got, inv.InvoiceNumber)
	}
	if strings.Join(got, ",") != "INV-3,INV-1,INV-2" {
		t.Fatalf("order: want=%q got=%q", "INV-3,INV-1,INV-2", strings.Join(got, ","))
	}
}

func TestGroupSkipsBlankInvoiceNumbers(t *testing.T) {
	set := Group([]types.Record{
		rec("INV-1", "Acme", "Widget", "1", "1"),
		rec("", "Acme", "Orphan", "1", "1"),
		rec("   ", "Acme", "Orphan", "1", "1"),
		{Fields: map[string]string{types.ColDescription: "no number column"}},
	})

	if set.Len() != 1 {
		t.Fatalf("Len: want=1 got=%d", set.Len())
	}
	if set.SkippedRows != 3 {
		t.Fatalf("SkippedRows: want=3 got=%d", set.SkippedRows)
	}
	inv, _ := set.Get("INV-1")
	if len(inv.Lines) != 1 {
		t.Fatalf("lines: want=1 got=%d", len(inv.Lines))
	}
}

func TestGroupHeaderFromFirstRow(t *testing.T) {
	set := Group([]types.Record{
		rec("INV-1", "Acme", "Widget", "1", "1"),
		rec("INV-1", "Other", "Gadget", "1", "1"),
	})
	inv, _ := set.Get("INV-1")
	if inv.CustomerName != "Acme" {
		t.Fatalf("CustomerName: want=%q got=%q", "Acme", inv.CustomerName)
	}
}

func TestGroupNonNumericDefaultsToZero(t *testing.T) {
	set := Group([]types.Record{
		rec("INV-1", "Acme", "Widget", "two", "10.00"),
		rec("INV-1", "Acme", "Gadget", "1", "5.00"),
		rec("INV-1", "Acme", "Blank", "", ""),
	})
	inv, _ := set.Get("INV-1")

	if want := decimal.RequireFromString("5"); !inv.Total().Equal(want) {
		t.Fatalf("total: want=%s got=%s", want, inv.Total())
	}
	if len(inv.Warnings) != 1 {
		t.Fatalf("warnings: want=1 got=%d (%v)", len(inv.Warnings), inv.Warnings)
	}
	if !strings.Contains(inv.Warnings[0], "data row 1") || !strings.Contains(inv.Warnings[0], "Quantity") {
		t.Fatalf("warning text: got=%q", inv.Warnings[0])
	}
}

func TestGroupDecimalPrecision(t *testing.T) {
	set := Group([]types.Record{
		rec("INV-1", "Acme", "a", "3", "0.10"),
		rec("INV-1", "Acme", "b", "1", "0.20"),
	})
	inv, _ := set.Get("INV-1")
	if got := inv.Total().StringFixed(2); got != "0.50" {
		t.Fatalf("total: want=%q got=%q", "0.50", got)
	}
}

func TestGroupWarningUsesSourceLine(t *testing.T) {
	first := rec("INV-1", "Acme", "Widget", "1", "1")
	first.Line = 2
	second := rec("INV-1", "Acme", "Gadget", "1", "ten")
	second.Line = 5

	set := Group([]types.Record{first, second})
	inv, _ := set.Get("INV-1")
	if len(inv.Warnings) != 1 || !strings.HasPrefix(inv.Warnings[0], "line 5: UnitPrice") {
		t.Fatalf("warnings: got=%v", inv.Warnings)
	}
	if inv.Lines[1].RowNumber != 2 || inv.Lines[1].SourceLine != 5 {
		t.Fatalf("positions: want row=2 line=5 got row=%d line=%d", inv.Lines[1].RowNumber, inv.Lines[1].SourceLine)
	}
}

func TestGroupRejectsOutOfRangeNumbers(t *testing.T) {
	set := Group([]types.Record{
		rec("INV-1", "Acme", "huge exponent", "1e300000000", "1"),
		rec("INV-1", "Acme", "tiny exponent", "1", "1e-300000000"),
		rec("INV-1", "Acme", "too many digits", "1234567890123456789012", "1"),
		rec("INV-1", "Acme", "ok", "2", "1.5"),
	})
	inv, _ := set.Get("INV-1")

	done := make(chan decimal.Decimal, 1)
	go func() { done <- inv.Total() }()
	select {
	case total := <-done:
		if want := decimal.RequireFromString("3"); !total.Equal(want) {
			t.Fatalf("total: want=%s got=%s", want, total)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Total did not return")
	}
	if len(inv.Warnings) != 3 {
		t.Fatalf("warnings: want=3 got=%d (%v)", len(inv.Warnings), inv.Warnings)
	}
	for _, w := range inv.Warnings {
		if !strings.Contains(w, "is not a number") {
			t.Fatalf("warning text: got=%q", w)
		}
	}
}
