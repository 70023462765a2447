package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	clientapi "github.com/iudanet/cropscan/internal/client/api"
	"github.com/iudanet/cropscan/internal/client/iocli"
	"github.com/iudanet/cropscan/internal/client/storage"
	"github.com/iudanet/cropscan/pkg/api"
)

// ErrUnknownCommand неизвестная команда
var ErrUnknownCommand = errors.New("unknown command")

// APIClient методы сервера, которые использует CLI
type APIClient interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	SubmitScan(ctx context.Context, token string, image clientapi.Image) (*api.ScanResponse, error)
	GetScan(ctx context.Context, token, scanID string) (*api.ScanResponse, error)
}

// Store локальное хранилище клиента
type Store interface {
	storage.SessionStorage
	storage.ScanHistory
}

type Cli struct {
	apiClient APIClient
	store     Store
	io        iocli.IO
	now       func() time.Time
}

func New(apiClient APIClient, store Store, io iocli.IO) *Cli {
	return &Cli{
		apiClient: apiClient,
		store:     store,
		io:        io,
		now:       time.Now,
	}
}

// Run выполняет команду
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "scan":
		return c.runScan(ctx, args)
	case "show":
		return c.runShow(ctx, args)
	case "history":
		return c.runHistory(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// PrintUsage печатает справку
func PrintUsage(w io.Writer) {
	_ = usageTmpl.Execute(w, nil)
}

// requireSession возвращает действующую сессию или понятную ошибку
func (c *Cli) requireSession(ctx context.Context) (*storage.Session, error) {
	session, err := c.store.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, fmt.Errorf("not authenticated. Please run 'cropscan login' first")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.Expired(c.now()) {
		return nil, fmt.Errorf("session expired. Please run 'cropscan login' again")
	}

	return session, nil
}

// explainAPIError добавляет подсказку к ошибке сервера
func explainAPIError(err error) error {
	var apiErr *clientapi.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w. Please run 'cropscan login' again", err)
	}
	return err
}

// toRecord переводит ответ сервера в локальную запись
func toRecord(resp *api.ScanResponse, source string) *storage.ScanRecord {
	return &storage.ScanRecord{
		ID:         resp.ID,
		UserID:     resp.UserID,
		Disease:    resp.Disease,
		Confidence: resp.Confidence,
		Severity:   resp.Severity,
		Treatment:  resp.Treatment,
		Source:     source,
		CreatedAt:  resp.CreatedAt,
	}
}
