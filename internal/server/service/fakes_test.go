package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/cropscan/internal/models"
	"github.com/iudanet/cropscan/internal/server/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStorage - in-memory реализация UserStorage и ScanStorage
type fakeStorage struct {
	users     map[string]*models.User
	scans     map[string]*models.Scan
	getErr    error
	createErr error
	scanErr   error
	mu        sync.Mutex
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		users: make(map[string]*models.User),
		scans: make(map[string]*models.Scan),
	}
}

func (f *fakeStorage) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return storage.ErrUserAlreadyExists
		}
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeStorage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeStorage) CreateScan(_ context.Context, scan *models.Scan) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.scanErr != nil {
		return f.scanErr
	}
	cp := *scan
	cp.Treatment = append([]string(nil), scan.Treatment...)
	f.scans[scan.ID] = &cp
	return nil
}

func (f *fakeStorage) GetScan(_ context.Context, scanID string) (*models.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.scanErr != nil {
		return nil, f.scanErr
	}
	s, ok := f.scans[scanID]
	if !ok {
		return nil, storage.ErrScanNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStorage) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scans)
}

type fakeAnalyzer struct {
	prediction  *models.Prediction
	err         error
	gotFilename string
	gotType     string
	calls       int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ []byte, filename, contentType string) (*models.Prediction, error) {
	f.calls++
	f.gotFilename = filename
	f.gotType = contentType
	if f.err != nil {
		return nil, f.err
	}
	return f.prediction, nil
}

type fakeArchive struct {
	err     error
	keys    []string
	types   []string
	payload [][]byte
}

func (f *fakeArchive) Put(_ context.Context, key, contentType string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.types = append(f.types, contentType)
	f.payload = append(f.payload, data)
	return nil
}

type fakeIssuer struct {
	err error
	ttl time.Duration
}

func (f *fakeIssuer) Issue(userID, email string) (string, time.Time, error) {
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	return "token-" + userID, time.Unix(1_700_000_000, 0).Add(f.ttl), nil
}
