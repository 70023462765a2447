package storage

import (
	"context"
	"time"
)

// ScanRecord локальная копия результата анализа
type ScanRecord struct {
	CreatedAt  time.Time `json:"created_at"`
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Disease    string    `json:"disease"`
	Severity   string    `json:"severity"`
	Source     string    `json:"source"` // путь к исходному файлу, если известен
	Treatment  []string  `json:"treatment"`
	Confidence float64   `json:"confidence"`
}

// ScanHistory хранит результаты сканов на клиенте
type ScanHistory interface {
	// SaveScan stores or replaces a scan by ID
	SaveScan(ctx context.Context, scan *ScanRecord) error

	// GetScan returns ErrScanNotFound if the scan is not cached
	GetScan(ctx context.Context, id string) (*ScanRecord, error)

	// ListScans returns the user's scans, newest first
	ListScans(ctx context.Context, userID string) ([]*ScanRecord, error)
}
