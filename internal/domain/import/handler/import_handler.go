// Package handler exposes statement ingestion over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/statement-ingest/internal/domain/export"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	importservice "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

const (
	uploadField      = "files"
	multipartMemory  = 32 << 20
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultMaxUpload = 20 << 20
)

// StatementImporter ingests uploaded statements.
type StatementImporter interface {
	ImportStatements(ctx context.Context, files []ledger.Document) (*importservice.ImportResult, error)
}

// CorrectionLearner records category corrections.
type CorrectionLearner interface {
	Learn(ctx context.Context, c categorization.Correction) (*normalizer.MerchantOverride, error)
}

// ImportHandler handles statement uploads and categorization corrections.
type ImportHandler struct {
	importSvc StatementImporter
	learner   CorrectionLearner // Optional: nil disables /v1/corrections
	maxUpload int64
	logger    *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc StatementImporter, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc: importSvc,
		maxUpload: defaultMaxUpload,
		logger:    logger,
	}
}

// WithLearner enables the corrections endpoint.
func (h *ImportHandler) WithLearner(l CorrectionLearner) *ImportHandler {
	h.learner = l
	return h
}

// WithMaxUpload caps the request body size.
func (h *ImportHandler) WithMaxUpload(n int64) *ImportHandler {
	if n > 0 {
		h.maxUpload = n
	}
	return h
}

// RegisterRoutes mounts the handler on mux.
func (h *ImportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/statements", h.UploadStatements)
	mux.HandleFunc("POST /v1/corrections", h.LearnCorrection)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// UploadStatements ingests every PDF in the multipart field "files". The
// result is JSON unless ?format=xlsx asks for the review workbook.
func (h *ImportHandler) UploadStatements(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxUpload))
			return
		}
		WriteError(w, http.StatusBadRequest, "expected multipart/form-data upload")
		return
	}

	docs, err := readUploads(r)
	if err != nil {
		h.logger.Warn("failed to read upload", "error", err)
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.importSvc.ImportStatements(r.Context(), docs)
	if err != nil {
		if errors.Is(err, ledger.ErrNoDocument) {
			WriteError(w, http.StatusBadRequest, "no statements uploaded")
			return
		}
		h.logger.Error("failed to import statements",
			slog.Int("files", len(docs)),
			slog.Any("error", err),
		)
		WriteError(w, http.StatusInternalServerError, "import failed")
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="import-%s.xlsx"`, result.JobID))
		if err := export.WriteReviewWorkbook(w, result.Result); err != nil {
			h.logger.Error("failed to write review workbook", slog.Any("error", err))
		}
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

func readUploads(r *http.Request) ([]ledger.Document, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[uploadField]
	docs := make([]ledger.Document, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		docs = append(docs, ledger.Document{Name: fh.Filename, Data: data})
	}
	return docs, nil
}

// LearnCorrection stores a merchant → category correction.
func (h *ImportHandler) LearnCorrection(w http.ResponseWriter, r *http.Request) {
	if h.learner == nil {
		WriteError(w, http.StatusNotImplemented, "corrections are not enabled")
		return
	}

	var req categorization.Correction
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	override, err := h.learner.Learn(r.Context(), req)
	if err != nil {
		if errors.Is(err, categorization.ErrInvalidCorrection) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to learn correction", slog.Any("error", err))
		WriteError(w, http.StatusInternalServerError, "failed to save correction")
		return
	}

	WriteJSON(w, http.StatusCreated, override)
}
