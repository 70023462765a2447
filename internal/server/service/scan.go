package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/cropscan/internal/apperr"
	"github.com/iudanet/cropscan/internal/models"
	"github.com/iudanet/cropscan/internal/server/archive"
	"github.com/iudanet/cropscan/internal/server/storage"
)

// DefaultMaxUploadSize 5 MiB
const DefaultMaxUploadSize int64 = 5 << 20

// Public messages
const (
	MsgNoImage        = "No image uploaded"
	MsgNotAnImage     = "file must be an image"
	MsgScanIDRequired = "Scan ID is required"
	MsgInvalidScanID  = "invalid scan id"
	MsgScanNotFound   = "Scan not found"
	MsgAccessDenied   = "Access denied"
	MsgUnauthorized   = "Unauthorized"
	MsgSaveFailed     = "failed to save scan"
	MsgArchiveFailed  = "failed to archive image"
	MsgLoadFailed     = "failed to load scan"
	MsgUploadTooLarge = "image exceeds the maximum upload size"
)

// Analyzer классифицирует изображение листа
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, filename, contentType string) (*models.Prediction, error)
}

// ImageArchive хранит копии загруженных изображений
type ImageArchive interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// Upload - загруженный клиентом файл
type Upload struct {
	Filename    string
	ContentType string // заявленный клиентом тип
	Data        []byte
}

// ScanService координирует загрузку, анализ и хранение результатов
type ScanService struct {
	logger        *slog.Logger
	scans         storage.ScanStorage
	analyzer      Analyzer
	archive       ImageArchive // nil если архив отключен
	newID         func() string
	now           func() time.Time
	maxUploadSize int64
}

// NewScanService creates a new scan service
// archive may be nil
func NewScanService(logger *slog.Logger, scans storage.ScanStorage, analyzer Analyzer, archive ImageArchive, maxUploadSize int64) *ScanService {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}

	return &ScanService{
		logger:        logger,
		scans:         scans,
		analyzer:      analyzer,
		archive:       archive,
		maxUploadSize: maxUploadSize,
		newID:         uuid.NewString,
		now:           time.Now,
	}
}

// MaxUploadSize returns the upload limit in bytes
func (s *ScanService) MaxUploadSize() int64 {
	return s.maxUploadSize
}

// Submit анализирует изображение и сохраняет результат за callerID
// Ошибка шлюза возвращается как есть, запись при этом не создается
func (s *ScanService) Submit(ctx context.Context, callerID string, upload Upload) (*models.Scan, error) {
	if len(upload.Data) == 0 {
		return nil, apperr.New(apperr.ErrValidation, MsgNoImage)
	}
	if int64(len(upload.Data)) > s.maxUploadSize {
		return nil, apperr.New(apperr.ErrPayloadTooLarge, MsgUploadTooLarge)
	}

	contentType, ok := imageContentType(upload)
	if !ok {
		return nil, apperr.New(apperr.ErrValidation, MsgNotAnImage)
	}

	if callerID == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, MsgUnauthorized)
	}

	prediction, err := s.analyzer.Analyze(ctx, upload.Data, upload.Filename, contentType)
	if err != nil {
		s.logger.WarnContext(ctx, "Image analysis failed",
			slog.String("user_id", callerID),
			slog.Any("error", err),
		)
		return nil, err
	}

	scan := models.NewScan(s.newID(), callerID, prediction, s.now())

	if s.archive != nil {
		key := archive.ObjectKey(callerID, scan.ID, upload.Filename, contentType, scan.CreatedAt)
		if err := s.archive.Put(ctx, key, contentType, upload.Data); err != nil {
			s.logger.ErrorContext(ctx, "Failed to archive image",
				slog.String("key", key),
				slog.Any("error", err),
			)
			return nil, apperr.Wrap(apperr.ErrPersistence, MsgArchiveFailed, err)
		}
		scan.ImageKey = key
	}

	if err := s.scans.CreateScan(ctx, scan); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save scan",
			slog.String("scan_id", scan.ID),
			slog.Any("error", err),
		)
		return nil, apperr.Wrap(apperr.ErrPersistence, MsgSaveFailed, err)
	}

	s.logger.InfoContext(ctx, "Scan saved",
		slog.String("scan_id", scan.ID),
		slog.String("user_id", callerID),
		slog.String("disease", scan.Disease),
	)

	return scan, nil
}

// Get возвращает скан только его владельцу
func (s *ScanService) Get(ctx context.Context, scanID, callerID string) (*models.Scan, error) {
	if scanID == "" {
		return nil, apperr.New(apperr.ErrValidation, MsgScanIDRequired)
	}
	if err := uuid.Validate(scanID); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, MsgInvalidScanID, err)
	}

	scan, err := s.scans.GetScan(ctx, scanID)
	if err != nil {
		if errors.Is(err, storage.ErrScanNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, MsgScanNotFound)
		}
		s.logger.ErrorContext(ctx, "Failed to get scan", slog.Any("error", err))
		return nil, apperr.Wrap(apperr.ErrPersistence, MsgLoadFailed, err)
	}

	if !scan.OwnedBy(callerID) {
		s.logger.WarnContext(ctx, "Scan access denied",
			slog.String("scan_id", scanID),
			slog.String("user_id", callerID),
		)
		return nil, apperr.New(apperr.ErrForbidden, MsgAccessDenied)
	}

	return scan, nil
}

// imageContentType определяет тип по содержимому
// Заявленный тип учитывается, только если сигнатура неизвестна
func imageContentType(upload Upload) (string, bool) {
	detected := http.DetectContentType(upload.Data)
	if strings.HasPrefix(detected, "image/") {
		return detected, true
	}

	declared := strings.ToLower(strings.TrimSpace(upload.ContentType))
	if detected == "application/octet-stream" && strings.HasPrefix(declared, "image/") {
		return declared, true
	}

	return "", false
}
