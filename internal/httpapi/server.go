// Package httpapi exposes the batch import over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ginjaninja78/invoice-batch-import/internal/logger"
	"github.com/ginjaninja78/invoice-batch-import/internal/orchestrator"
	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

const (
	ContentTypeJSON = "Content-Type"
	ApplicationJSON = "application/json"

	uploadField = "file"
)

// Runner processes one uploaded batch.
type Runner interface {
	Run(ctx context.Context, src orchestrator.Source) (*types.Report, error)
}

// Pinger reports backend health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the import endpoints.
type Handler struct {
	runner      Runner
	pinger      Pinger
	maxUploadMB int64
	log         *logger.Logger
}

// NewHandler creates a Handler. pinger may be nil.
func NewHandler(runner Runner, pinger Pinger, maxUploadMB int64, log *logger.Logger) *Handler {
	if maxUploadMB < 1 {
		maxUploadMB = 32
	}
	return &Handler{runner: runner, pinger: pinger, maxUploadMB: maxUploadMB, log: logger.OrNop(log)}
}

// Router registers the routes on a new gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/invoices/import", h.ImportInvoices).Methods(http.MethodPost)
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	return router
}

// ImportInvoices accepts a multipart upload in field "file" and returns
// the batch report.
//
//	400  unreadable upload, malformed or empty input
//	200  report, for every batch that reached processing
//	500  the pipeline could not start processing
func (h *Handler) ImportInvoices(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusBadRequest, "upload exceeds the size limit")
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid request format: expected multipart/form-data")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "missing upload field \"file\"")
		return
	}
	defer file.Close()

	log := h.log.With("file", header.Filename, "size", header.Size)
	log.Info("import upload received")

	rep, err := h.runner.Run(r.Context(), orchestrator.Source{Name: header.Filename, Reader: file})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error("import failed", "error", err)
		} else {
			log.Warn("import rejected", "error", err)
		}
		respondWithError(w, status, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, rep)
}

// Health reports whether the persistence backend answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.log.Warn("health check failed", "error", err)
			respondWithError(w, http.StatusServiceUnavailable, "backend unavailable")
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(err error) int {
	var perr *types.ParseError
	var empty *types.EmptyInputError
	switch {
	case errors.As(err, &perr), errors.As(err, &empty):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(w http.ResponseWriter, status int, errMsg string) {
	respondWithJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   errMsg,
	})
}

func respondWithJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set(ContentTypeJSON, ApplicationJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
