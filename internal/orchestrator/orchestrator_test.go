package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ginjaninja78/invoice-batch-import/internal/config"
	"github.com/ginjaninja78/invoice-batch-import/internal/resolver"
	"github.com/ginjaninja78/invoice-batch-import/internal/store"
	"github.com/ginjaninja78/invoice-batch-import/internal/submitter"
	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

const header = "InvoiceNumber,CustomerName,IssueDate,DueDate,Description,Quantity,UnitPrice\n"

// failingCreator fails CreateInvoice for one invoice number.
type failingCreator struct {
	*store.Memory
	failOn string
}

func (f *failingCreator) CreateInvoice(ctx context.Context, p types.Payload) (string, error) {
	if p.InvoiceNumber == f.failOn {
		return "", errors.New("connection reset")
	}
	return f.Memory.CreateInvoice(ctx, p)
}

func newPipeline(mem *store.Memory, creator submitter.InvoiceCreator, opts Options) *Orchestrator {
	if opts.Import.Workers == 0 {
		opts.Import = config.Default().Import
	}
	sub := submitter.New(resolver.New(mem, nil), creator, submitter.Options{Timeout: time.Second})
	return New(sub, opts)
}

func source(body string) Source {
	return Source{Name: "batch.csv", Reader: strings.NewReader(body)}
}

func TestRunCustomerNotFoundIsolated(t *testing.T) {
	mem := store.NewMemory("Acme")
	o := newPipeline(mem, mem, Options{})

	report, err := o.Run(context.Background(), source(header+
		"INV-1,Acme,2024-01-01,2024-01-31,Widget,2,10.00\n"+
		"INV-1,Acme,2024-01-01,2024-01-31,Gadget,1,5.00\n"+
		"INV-2,Ghost,2024-01-01,2024-01-31,Thing,1,1.00\n"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Total != 2 || report.Success != 1 || report.Failed != 1 {
		t.Fatalf("counters: got total=%d success=%d failed=%d", report.Total, report.Success, report.Failed)
	}
	if report.Details[0].InvoiceNumber != "INV-1" || report.Details[0].Status != types.StatusCreated || report.Details[0].ID == "" {
		t.Fatalf("details[0]: got=%+v", report.Details[0])
	}
	want := types.Detail{InvoiceNumber: "INV-2", Status: types.StatusFailed, Error: "Customer 'Ghost' not found"}
	if got := report.Details[1]; got.InvoiceNumber != want.InvoiceNumber || got.Status != want.Status || got.Error != want.Error {
		t.Fatalf("details[1]: want=%+v got=%+v", want, got)
	}

	stored, ok := mem.Invoice("INV-1")
	if !ok {
		t.Fatalf("INV-1 not stored")
	}
	if got := stored.Payload.TotalAmount.StringFixed(2); got != "25.00" {
		t.Fatalf("stored total: want=%q got=%q", "25.00", got)
	}
	if report.BatchID == "" || report.FinishedAt.Before(report.StartedAt) {
		t.Fatalf("batch metadata: got id=%q started=%v finished=%v", report.BatchID, report.StartedAt, report.FinishedAt)
	}
}

func TestRunContinuesAfterPersistenceFailure(t *testing.T) {
	mem := store.NewMemory("Acme")
	o := newPipeline(mem, &failingCreator{Memory: mem, failOn: "INV-2"}, Options{})

	report, err := o.Run(context.Background(), source(header+
		"INV-1,Acme,,,a,1,1\n"+
		"INV-2,Acme,,,b,1,1\n"+
		"INV-3,Acme,,,c,1,1\n"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	statuses := []types.Status{report.Details[0].Status, report.Details[1].Status, report.Details[2].Status}
	if statuses[0] != types.StatusCreated || statuses[1] != types.StatusFailed || statuses[2] != types.StatusCreated {
		t.Fatalf("statuses: got=%v", statuses)
	}
	if !strings.Contains(report.Details[1].Error, "connection reset") {
		t.Fatalf("error: got=%q", report.Details[1].Error)
	}
}

func TestRunAllFailedStillReports(t *testing.T) {
	mem := store.NewMemory()
	o := newPipeline(mem, mem, Options{})

	report, err := o.Run(context.Background(), source(header+"INV-1,Nobody,,,a,1,1\nINV-2,Nobody,,,b,1,1\n"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Total != 2 || report.Failed != 2 || len(report.Details) != 2 {
		t.Fatalf("report: got total=%d failed=%d details=%d", report.Total, report.Failed, len(report.Details))
	}
}

func TestRunDropsRowsWithoutInvoiceNumber(t *testing.T) {
	mem := store.NewMemory("Acme")
	o := newPipeline(mem, mem, Options{})

	report, err := o.Run(context.Background(), source(header+"INV-1,Acme,,,a,1,1\n,Acme,,,orphan,1,1\n"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Total != 1 {
		t.Fatalf("total: want=1 got=%d", report.Total)
	}
}

func TestRunBatchFatalErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(error) bool
	}{
		{"header only", header, func(err error) bool { var e *types.EmptyInputError; return errors.As(err, &e) }},
		{"no invoice numbers", header + ",Acme,,,a,1,1\n,Acme,,,b,1,1\n", func(err error) bool {
			var e *types.EmptyInputError
			return errors.As(err, &e) && err.Error() == "input contains no invoices: all 2 data rows lack InvoiceNumber"
		}},
		{"unbalanced quote", header + "INV-1,\"Acme,,,a,1,1\n", func(err error) bool { var e *types.ParseError; return errors.As(err, &e) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory("Acme")
			o := newPipeline(mem, mem, Options{})

			report, err := o.Run(context.Background(), source(tt.body))
			if report != nil {
				t.Fatalf("report: want nil got=%+v", report)
			}
			if !tt.check(err) {
				t.Fatalf("unexpected error %T (%v)", err, err)
			}
		})
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

func TestRunBackendUnreachable(t *testing.T) {
	mem := store.NewMemory("Acme")
	o := newPipeline(mem, mem, Options{Pinger: downPinger{}})

	report, err := o.Run(context.Background(), source(header+"INV-1,Acme,,,a,1,1\n"))
	var fault *types.OrchestratorFault
	if !errors.As(err, &fault) {
		t.Fatalf("want OrchestratorFault, got %T (%v)", err, err)
	}
	if report != nil || mem.InvoiceCount() != 0 {
		t.Fatalf("nothing may be attempted: report=%v stored=%d", report, mem.InvoiceCount())
	}
}

// hangingPinger never answers until its context ends.
type hangingPinger struct{}

func (hangingPinger) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunPingBoundedBySubmitTimeout(t *testing.T) {
	mem := store.NewMemory("Acme")
	settings := config.Default().Import
	settings.SubmitTimeout = 50 * time.Millisecond
	o := newPipeline(mem, mem, Options{Import: settings, Pinger: hangingPinger{}})

	type result struct {
		report *types.Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := o.Run(context.Background(), source(header+"INV-1,Acme,,,a,1,1\n"))
		done <- result{report, err}
	}()

	select {
	case res := <-done:
		var fault *types.OrchestratorFault
		if !errors.As(res.err, &fault) || !errors.Is(res.err, context.DeadlineExceeded) {
			t.Fatalf("want OrchestratorFault wrapping DeadlineExceeded, got %T (%v)", res.err, res.err)
		}
		if res.report != nil || mem.InvoiceCount() != 0 {
			t.Fatalf("nothing may be attempted: report=%v stored=%d", res.report, mem.InvoiceCount())
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run still blocked on Ping")
	}
}

// slowSubmitter finishes earlier invoices last.
type slowSubmitter struct {
	active, peak atomic.Int32
}

func (s *slowSubmitter) Submit(_ context.Context, inv *types.Invoice) types.Outcome {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	var idx int
	fmt.Sscanf(inv.InvoiceNumber, "INV-%d", &idx)
	time.Sleep(time.Duration(10-idx) * 2 * time.Millisecond)
	return types.Created(inv.InvoiceNumber, "id-"+inv.InvoiceNumber)
}

func TestRunWorkersKeepInputOrder(t *testing.T) {
	var body strings.Builder
	body.WriteString(header)
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&body, "INV-%d,Acme,,,a,1,1\n", i)
	}

	sub := &slowSubmitter{}
	settings := config.Default().Import
	settings.Workers = 3
	o := New(sub, Options{Import: settings})

	report, err := o.Run(context.Background(), source(body.String()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, d := range report.Details {
		if want := fmt.Sprintf("INV-%d", i); d.InvoiceNumber != want {
			t.Fatalf("details[%d]: want=%q got=%q", i, want, d.InvoiceNumber)
		}
	}
	if peak := sub.peak.Load(); peak > 3 {
		t.Fatalf("peak concurrency: want<=3 got=%d", peak)
	}
}

// cancellingSubmitter cancels the batch after the first invoice.
type cancellingSubmitter struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingSubmitter) Submit(_ context.Context, inv *types.Invoice) types.Outcome {
	c.calls++
	c.cancel()
	return types.Created(inv.InvoiceNumber, "id")
}

func TestRunCancelledMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := &cancellingSubmitter{cancel: cancel}
	o := New(sub, Options{Import: config.Default().Import})

	report, err := o.Run(ctx, source(header+"INV-1,A,,,a,1,1\nINV-2,A,,,a,1,1\nINV-3,A,,,a,1,1\n"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sub.calls != 1 {
		t.Fatalf("submit calls: want=1 got=%d", sub.calls)
	}
	if report.Total != 3 || report.Success != 1 || report.Failed != 2 {
		t.Fatalf("counters: got total=%d success=%d failed=%d", report.Total, report.Success, report.Failed)
	}
	if report.Details[2].Error != ErrBatchCancelled.Error() {
		t.Fatalf("details[2].error: want=%q got=%q", ErrBatchCancelled.Error(), report.Details[2].Error)
	}
}

func TestRunCarriesWarnings(t *testing.T) {
	mem := store.NewMemory("Acme")
	o := newPipeline(mem, mem, Options{})

	report, err := o.Run(context.Background(), source(header+"INV-1,Acme,,,a,abc,1\nINV-1,Acme,,,b,1,5\n"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Details[0].Warnings) != 1 {
		t.Fatalf("warnings: want=1 got=%v", report.Details[0].Warnings)
	}
	stored, _ := mem.Invoice("INV-1")
	if got := stored.Payload.TotalAmount.StringFixed(2); got != "5.00" {
		t.Fatalf("total: want=%q got=%q", "5.00", got)
	}
}

func TestDryRun(t *testing.T) {
	mem := store.NewMemory("Acme")
	o := newPipeline(mem, mem, Options{})

	set, err := o.DryRun(context.Background(), source(header+"INV-1,Acme,,,a,2,10\nINV-2,Acme,,,b,1,1\n"))
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if set.Len() != 2 || mem.InvoiceCount() != 0 {
		t.Fatalf("dry run: invoices=%d stored=%d", set.Len(), mem.InvoiceCount())
	}
}
