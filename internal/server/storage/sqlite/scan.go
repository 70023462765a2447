package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/cropscan/internal/models"
	"github.com/iudanet/cropscan/internal/server/storage"
)

// CreateScan saves a scan result
// treatment хранится как JSON массив, порядок сохраняется
func (s *Storage) CreateScan(ctx context.Context, scan *models.Scan) error {
	treatment := scan.Treatment
	if treatment == nil {
		treatment = []string{}
	}

	treatmentJSON, err := json.Marshal(treatment)
	if err != nil {
		return fmt.Errorf("failed to marshal treatment: %w", err)
	}

	query := `
		INSERT INTO scans (id, user_id, disease, confidence, severity, treatment, image_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		scan.ID,
		scan.UserID,
		scan.Disease,
		scan.Confidence,
		scan.Severity,
		string(treatmentJSON),
		scan.ImageKey,
		scan.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	return nil
}

// GetScan retrieves scan by ID
func (s *Storage) GetScan(ctx context.Context, scanID string) (*models.Scan, error) {
	query := `
		SELECT id, user_id, disease, confidence, severity, treatment, image_key, created_at
		FROM scans
		WHERE id = ?
	`

	scan := &models.Scan{}
	var treatmentJSON string

	err := s.db.QueryRowContext(ctx, query, scanID).Scan(
		&scan.ID,
		&scan.UserID,
		&scan.Disease,
		&scan.Confidence,
		&scan.Severity,
		&treatmentJSON,
		&scan.ImageKey,
		&scan.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrScanNotFound
		}
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	if err := json.Unmarshal([]byte(treatmentJSON), &scan.Treatment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal treatment: %w", err)
	}

	return scan, nil
}
