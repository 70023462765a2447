package storage

import "context"

// Storage объединяет хранилища, используемые сервером
type Storage interface {
	UserStorage
	ScanStorage

	// Ping проверяет доступность базы данных
	Ping(ctx context.Context) error

	// Close closes the underlying connection
	Close() error
}
