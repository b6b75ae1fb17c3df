package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ginjaninja78/invoice-batch-import/internal/config"
	"github.com/ginjaninja78/invoice-batch-import/internal/logger"
	"github.com/ginjaninja78/invoice-batch-import/internal/orchestrator"
	"github.com/ginjaninja78/invoice-batch-import/internal/report"
	"github.com/ginjaninja78/invoice-batch-import/internal/types"
	"github.com/ginjaninja78/invoice-batch-import/pkg/utils"
)

// InputExtensions are the file types picked up from the inbox.
var InputExtensions = []string{".csv", ".txt", ".xlsx"}

// Runner processes one batch.
type Runner interface {
	Run(ctx context.Context, src orchestrator.Source) (*types.Report, error)
}

// Inbox imports every file dropped into a directory.
type Inbox struct {
	files  *utils.FileManager
	runner Runner
	format string
	log    *logger.Logger

	mu sync.Mutex
	// rejected remembers files that failed as a batch, so an unchanged file
	// is not reported again on every tick.
	rejected map[string]fileStamp
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

// RunSummary counts what one RunOnce pass did.
type RunSummary struct {
	Processed int
	Rejected  int
	Skipped   int
	Errors    int
	Reports   []string
}

func NewInbox(files *utils.FileManager, runner Runner, format string, log *logger.Logger) *Inbox {
	return &Inbox{
		files:    files,
		runner:   runner,
		format:   format,
		log:      logger.OrNop(log),
		rejected: make(map[string]fileStamp),
	}
}

// RunOnce processes every input file currently in the inbox.
//
// For each file:
//   - a completed batch writes its report and archives the input
//   - a rejected batch (unparseable or empty) writes a failure report and
//     leaves the input in place until it changes
//   - any other error leaves the input for the next run
func (in *Inbox) RunOnce(ctx context.Context) (RunSummary, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	var summary RunSummary
	if err := in.files.EnsureDirectories(); err != nil {
		return summary, err
	}
	paths, err := in.files.DiscoverInputFiles(InputExtensions...)
	if err != nil {
		return summary, err
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		stamp, err := stampOf(path)
		if err != nil {
			in.log.Warn("input file vanished", "file", path, "error", err)
			continue
		}
		if prev, ok := in.rejected[path]; ok && prev.same(stamp) {
			summary.Skipped++
			continue
		}

		reportPath, outcome, err := in.processFile(ctx, path)
		switch outcome {
		case outcomeProcessed:
			summary.Processed++
			delete(in.rejected, path)
		case outcomeRejected:
			summary.Rejected++
			in.rejected[path] = stamp
		default:
			summary.Errors++
			in.log.Error("inbox import failed", "file", path, "error", err)
		}
		if reportPath != "" {
			summary.Reports = append(summary.Reports, reportPath)
		}
	}

	if len(paths) > 0 {
		in.log.Info("inbox run complete",
			"processed", summary.Processed, "rejected", summary.Rejected,
			"skipped", summary.Skipped, "errors", summary.Errors)
	}
	return summary, nil
}

type fileOutcome int

const (
	outcomeError fileOutcome = iota
	outcomeProcessed
	outcomeRejected
)

func (in *Inbox) processFile(ctx context.Context, path string) (string, fileOutcome, error) {
	name := filepath.Base(path)
	log := in.log.With("file", name)

	f, err := os.Open(path)
	if err != nil {
		return "", outcomeError, fmt.Errorf("open input: %w", err)
	}
	rep, runErr := in.runner.Run(ctx, orchestrator.Source{Name: name, Reader: f})
	f.Close()

	if runErr != nil {
		var perr *types.ParseError
		var empty *types.EmptyInputError
		if !errors.As(runErr, &perr) && !errors.As(runErr, &empty) {
			return "", outcomeError, runErr
		}

		failure := report.NewFailure(name, runErr, time.Now())
		reportPath, err := in.files.WriteReportFile(name, report.Extension(in.format), func(w io.Writer) error {
			return report.WriteFailure(w, in.format, failure)
		})
		if err != nil {
			return "", outcomeError, err
		}
		log.Warn("batch rejected", "error", runErr, "report", reportPath)
		return reportPath, outcomeRejected, nil
	}

	reportPath, err := in.files.WriteReportFile(name, report.Extension(in.format), func(w io.Writer) error {
		return report.Write(w, in.format, rep)
	})
	if err != nil {
		return "", outcomeError, err
	}

	archived, err := in.files.ArchiveInputFile(path)
	if err != nil {
		// The report is already written; leaving the input means the next
		// run reports every invoice as a duplicate.
		log.Error("failed to archive input", "error", err)
	} else {
		log.Info("input archived", "archive", archived)
	}
	return reportPath, outcomeProcessed, nil
}

func (s fileStamp) same(o fileStamp) bool {
	return s.size == o.size && s.modTime.Equal(o.modTime)
}

func stampOf(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{size: info.Size(), modTime: info.ModTime()}, nil
}

// =============================================================================
// SCHEDULING
// =============================================================================

// StartInbox schedules inbox runs with cron in the configured time zone.
// The returned stop function stops scheduling and waits for a running
// import to finish.
func StartInbox(ctx context.Context, settings config.InboxSettings, inbox *Inbox, log *logger.Logger) (func(), error) {
	log = logger.OrNop(log)

	loc, err := time.LoadLocation(settings.TimeZone)
	if err != nil {
		log.Warn("invalid time zone, falling back to UTC", "time_zone", settings.TimeZone, "error", err)
		loc = time.UTC
	}

	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	_, err = c.AddFunc(settings.Schedule, func() {
		if _, err := inbox.RunOnce(ctx); err != nil {
			log.Error("inbox run failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to schedule inbox import: %w", err)
	}

	c.Start()
	log.Info("inbox scheduler started",
		"schedule", settings.Schedule, "time_zone", loc.String(), "input_dir", settings.InputDir)

	return func() {
		<-c.Stop().Done()
	}, nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
