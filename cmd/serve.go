package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-batch-import/internal/httpapi"
	"github.com/ginjaninja78/invoice-batch-import/internal/jobs"
	"github.com/ginjaninja78/invoice-batch-import/pkg/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP upload endpoint and the scheduled inbox import",
	Long: `The serve command listens on server.addr:

  POST /api/invoices/import   multipart upload, field "file"
  GET  /healthz               backend health

When inbox.enabled is true, files dropped into inbox.input_dir are imported
on inbox.schedule as well.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg := appConfig
	log := appLog

	orch, backend, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	if cfg.Inbox.Enabled {
		fm := utils.NewFileManager(cfg.Inbox.InputDir, cfg.Inbox.ArchiveDir, cfg.Inbox.OutputDir)
		inbox := jobs.NewInbox(fm, orch, cfg.Inbox.ReportFormat, log)
		stopInbox, err := jobs.StartInbox(ctx, cfg.Inbox, inbox, log)
		if err != nil {
			return err
		}
		defer stopInbox()
	}

	handler := httpapi.NewHandler(orch, backend, cfg.Server.MaxUploadMB, log)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
