package storage

import (
	"context"

	"github.com/iudanet/cropscan/internal/models"
)

// ScanStorage defines interface for scan results persistence
type ScanStorage interface {
	// CreateScan сохраняет результат анализа
	// Запись неизменяема после создания
	CreateScan(ctx context.Context, scan *models.Scan) error

	// GetScan retrieves scan by ID regardless of owner
	// Returns ErrScanNotFound if scan doesn't exist
	GetScan(ctx context.Context, scanID string) (*models.Scan, error)
}
