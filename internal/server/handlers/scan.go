package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/cropscan/internal/apperr"
	"github.com/iudanet/cropscan/internal/models"
	"github.com/iudanet/cropscan/internal/server/service"
	"github.com/iudanet/cropscan/pkg/api"
)

// multipartOverhead запас на заголовки и границы multipart
const multipartOverhead = 64 << 10

// ScanService анализирует и выдает результаты сканирования
type ScanService interface {
	Submit(ctx context.Context, callerID string, upload service.Upload) (*models.Scan, error)
	Get(ctx context.Context, scanID, callerID string) (*models.Scan, error)
}

// ScanHandler обрабатывает запросы к /scan
type ScanHandler struct {
	logger        *slog.Logger
	scans         ScanService
	maxUploadSize int64
}

// NewScanHandler создает новый handler сканирования
func NewScanHandler(logger *slog.Logger, scans ScanService, maxUploadSize int64) *ScanHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = service.DefaultMaxUploadSize
	}

	return &ScanHandler{
		logger:        logger,
		scans:         scans,
		maxUploadSize: maxUploadSize,
	}
}

// Submit обрабатывает POST /scan
// Ожидает multipart поле image
func (h *ScanHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		SendError(h.logger, w, service.MsgUnauthorized, http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	upload, err := h.readUpload(r)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read upload",
			slog.String("user_id", identity.ID),
			slog.Any("error", err),
		)
		sendAppError(ctx, h.logger, w, err)
		return
	}

	scan, err := h.scans.Submit(ctx, identity.ID, upload)
	if err != nil {
		sendAppError(ctx, h.logger, w, err)
		return
	}

	SendJSON(h.logger, w, toScanResponse(scan), http.StatusOK)
}

// Get обрабатывает GET /scan/{id} и GET /scan/ без id
func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		SendError(h.logger, w, service.MsgUnauthorized, http.StatusUnauthorized)
		return
	}

	scan, err := h.scans.Get(ctx, chi.URLParam(r, "id"), identity.ID)
	if err != nil {
		sendAppError(ctx, h.logger, w, err)
		return
	}

	SendJSON(h.logger, w, toScanResponse(scan), http.StatusOK)
}

// readUpload читает файл из поля image
func (h *ScanHandler) readUpload(r *http.Request) (service.Upload, error) {
	// файл целиком помещается в память при лимите maxUploadSize
	if err := r.ParseMultipartForm(h.maxUploadSize + multipartOverhead); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return service.Upload{}, apperr.Wrap(apperr.ErrPayloadTooLarge, service.MsgUploadTooLarge, err)
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			return service.Upload{}, apperr.Wrap(apperr.ErrValidation, service.MsgNoImage, err)
		default:
			return service.Upload{}, apperr.Wrap(apperr.ErrValidation, "invalid multipart body", err)
		}
	}

	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(api.ImageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return service.Upload{}, apperr.Wrap(apperr.ErrValidation, service.MsgNoImage, err)
		}
		return service.Upload{}, apperr.Wrap(apperr.ErrValidation, "invalid multipart body", err)
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		return service.Upload{}, apperr.Wrap(apperr.ErrValidation, "failed to read image", err)
	}

	return service.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func toScanResponse(scan *models.Scan) api.ScanResponse {
	treatment := scan.Treatment
	if treatment == nil {
		treatment = []string{}
	}

	return api.ScanResponse{
		ID:         scan.ID,
		UserID:     scan.UserID,
		Disease:    scan.Disease,
		Confidence: scan.Confidence,
		Severity:   scan.Severity,
		Treatment:  treatment,
		ImageKey:   scan.ImageKey,
		CreatedAt:  scan.CreatedAt,
	}
}
