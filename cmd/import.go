// =============================================================================
// Invoice Batch Import - Import Command
// =============================================================================
//
// This file defines the 'import' command, which runs one batch per input file.
//
// COMMAND USAGE:
//   invoice-import import [files...] [flags]
//
// FLAGS:
//   --format      : Report format printed to stdout (json, xml, summary)
//   --dry-run     : Parse and group only; print the invoices that would be created
//   --keep-input  : Do not move imported files to the archive directory
//
// Without file arguments every .csv, .txt and .xlsx file in inbox.input_dir
// is imported, exactly as the scheduled inbox job does it.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-batch-import/internal/config"
	"github.com/ginjaninja78/invoice-batch-import/internal/jobs"
	"github.com/ginjaninja78/invoice-batch-import/internal/orchestrator"
	"github.com/ginjaninja78/invoice-batch-import/internal/report"
	"github.com/ginjaninja78/invoice-batch-import/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	reportFormat string
	dryRun       bool
	keepInput    bool
)

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Import invoice line-item files",
	Long: `The import command reads each file, groups its rows into invoices and
creates every invoice in the configured store.

For each file:
  - The batch report is printed and written to the output directory
  - The input file is moved to the archive directory

A file that cannot be parsed, or has no data rows, is rejected as a whole:
nothing is created, the error is reported and the file stays where it is.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runImport(ctx, cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(
		&reportFormat,
		"format",
		config.FormatJSON,
		"Report format: json, xml or summary",
	)
	importCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Parse and group the input without creating any invoice",
	)
	importCmd.Flags().BoolVar(
		&keepInput,
		"keep-input",
		false,
		"Leave input files in place instead of archiving them",
	)
}

// =============================================================================
// IMPORT
// =============================================================================

func runImport(ctx context.Context, out io.Writer, files []string) error {
	switch reportFormat {
	case config.FormatJSON, config.FormatXML, config.FormatSummary:
	default:
		return fmt.Errorf("unknown --format %q", reportFormat)
	}

	cfg := appConfig
	log := appLog

	if dryRun {
		return runDryRun(ctx, out, cfg, files)
	}

	orch, backend, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	fm := utils.NewFileManager(cfg.Inbox.InputDir, cfg.Inbox.ArchiveDir, cfg.Inbox.OutputDir)

	if len(files) == 0 {
		inbox := jobs.NewInbox(fm, orch, reportFormat, log)
		summary, err := inbox.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Processed: %d  Rejected: %d  Errors: %d\n", summary.Processed, summary.Rejected, summary.Errors)
		for _, path := range summary.Reports {
			fmt.Fprintf(out, "  %s\n", path)
		}
		if summary.Errors > 0 {
			return fmt.Errorf("%d file(s) could not be imported", summary.Errors)
		}
		return nil
	}

	var failed int
	for _, path := range files {
		if err := importFile(ctx, out, orch, fm, path); err != nil {
			failed++
			log.Error("import failed", "file", path, "error", err)
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) were rejected", failed, len(files))
	}
	return nil
}

func importFile(ctx context.Context, out io.Writer, orch *orchestrator.Orchestrator, fm *utils.FileManager, path string) error {
	name := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	rep, runErr := orch.Run(ctx, orchestrator.Source{Name: name, Reader: f})
	f.Close()

	if runErr != nil {
		failure := report.NewFailure(name, runErr, time.Now())
		if _, err := fm.WriteReportFile(name, report.Extension(reportFormat), func(w io.Writer) error {
			return report.WriteFailure(w, reportFormat, failure)
		}); err != nil {
			appLog.Warn("failed to write failure report", "file", name, "error", err)
		}
		return runErr
	}

	if err := report.Write(out, reportFormat, rep); err != nil {
		return err
	}

	reportPath, err := fm.WriteReportFile(name, report.Extension(reportFormat), func(w io.Writer) error {
		return report.Write(w, reportFormat, rep)
	})
	if err != nil {
		return err
	}
	appLog.Info("report written", "file", name, "report", reportPath)

	if !keepInput {
		if _, err := fm.ArchiveInputFile(path); err != nil {
			appLog.Error("failed to archive input", "file", name, "error", err)
		}
	}
	return nil
}

func runDryRun(ctx context.Context, out io.Writer, cfg *config.Config, files []string) error {
	if len(files) == 0 {
		fm := utils.NewFileManager(cfg.Inbox.InputDir, cfg.Inbox.ArchiveDir, cfg.Inbox.OutputDir)
		found, err := fm.DiscoverInputFiles(jobs.InputExtensions...)
		if err != nil {
			return err
		}
		files = found
	}

	orch := orchestrator.New(nil, orchestrator.Options{Import: cfg.Import, Logger: appLog})

	var errs []error
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set, err := orch.DryRun(ctx, orchestrator.Source{Name: filepath.Base(path), Reader: f})
		f.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}

		fmt.Fprintf(out, "%s (%d invoices, %d rows without invoice number)\n", path, set.Len(), set.SkippedRows)
		if err := report.WritePreview(out, set.Invoices()); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return errors.Join(errs...)
}
