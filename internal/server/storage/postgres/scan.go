package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iudanet/cropscan/internal/models"
	"github.com/iudanet/cropscan/internal/server/storage"
)

// CreateScan saves a scan result
func (s *Storage) CreateScan(ctx context.Context, scan *models.Scan) error {
	const op = "postgres.CreateScan"

	treatment := scan.Treatment
	if treatment == nil {
		treatment = []string{}
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, disease, confidence, severity, treatment, image_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`, scansTable)

	_, err := s.pool.Exec(ctx, query,
		scan.ID,
		scan.UserID,
		scan.Disease,
		scan.Confidence,
		scan.Severity,
		treatment,
		scan.ImageKey,
		scan.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetScan retrieves scan by ID
func (s *Storage) GetScan(ctx context.Context, scanID string) (*models.Scan, error) {
	const op = "postgres.GetScan"

	query := fmt.Sprintf(`SELECT id, user_id, disease, confidence, severity, treatment, image_key, created_at
		FROM %s WHERE id = $1;`, scansTable)

	scan := &models.Scan{}
	err := s.pool.QueryRow(ctx, query, scanID).Scan(
		&scan.ID,
		&scan.UserID,
		&scan.Disease,
		&scan.Confidence,
		&scan.Severity,
		&scan.Treatment,
		&scan.ImageKey,
		&scan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrScanNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return scan, nil
}
