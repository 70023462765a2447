package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/cropscan/internal/client/storage"
)

// SaveScan stores or replaces a scan
func (s *Storage) SaveScan(ctx context.Context, scan *storage.ScanRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketScans)
		if bucket == nil {
			return fmt.Errorf("scans bucket not found")
		}

		data, err := json.Marshal(scan)
		if err != nil {
			return fmt.Errorf("failed to marshal scan: %w", err)
		}

		if err := bucket.Put([]byte(scan.ID), data); err != nil {
			return fmt.Errorf("failed to save scan: %w", err)
		}

		return nil
	})
}

// GetScan retrieves a scan by ID
func (s *Storage) GetScan(ctx context.Context, id string) (*storage.ScanRecord, error) {
	var scan *storage.ScanRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketScans)
		if bucket == nil {
			return fmt.Errorf("scans bucket not found")
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrScanNotFound
		}

		scan = &storage.ScanRecord{}
		if err := json.Unmarshal(data, scan); err != nil {
			return fmt.Errorf("failed to unmarshal scan: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return scan, nil
}

// ListScans returns the user's scans, newest first
func (s *Storage) ListScans(ctx context.Context, userID string) ([]*storage.ScanRecord, error) {
	var scans []*storage.ScanRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketScans)
		if bucket == nil {
			return fmt.Errorf("scans bucket not found")
		}

		return bucket.ForEach(func(k, v []byte) error {
			scan := &storage.ScanRecord{}
			if err := json.Unmarshal(v, scan); err != nil {
				return fmt.Errorf("failed to unmarshal scan: %w", err)
			}

			// Фильтруем по владельцу
			if scan.UserID == userID {
				scans = append(scans, scan)
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})

	return scans, nil
}
