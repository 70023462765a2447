package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/cropscan/internal/config"
	"github.com/iudanet/cropscan/internal/models"
	"github.com/iudanet/cropscan/internal/server/inference"
	"github.com/iudanet/cropscan/internal/server/jwt"
	"github.com/iudanet/cropscan/internal/server/service"
	"github.com/iudanet/cropscan/internal/server/storage/sqlite"
	"github.com/iudanet/cropscan/pkg/api"
)

var pngImage = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 256)...)

func testConfig() *config.Config {
	return &config.Config{
		Env: config.EnvLocal,
		DB:  config.DB{URL: ":memory:"},
		HTTPServer: config.HTTPServer{
			Host:            "127.0.0.1",
			Port:            0,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			IdleTimeout:     5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxUploadSize:   64 << 10,
		},
		JWT: config.JWT{Secret: "0123456789abcdef0123456789abcdef", TTL: time.Hour},
		ML:  config.ML{Timeout: 2 * time.Second},
		RateLimit: config.RateLimit{
			Global:       1000,
			GlobalWindow: time.Minute,
			Auth:         100,
			AuthWindow:   time.Minute,
		},
	}
}

// mlStub отвечает фиксированным прогнозом или статусом
func mlStub(t *testing.T, status int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"disease":"Early Blight","confidence":0.87,"severity":"HIGH","treatment":["Remove infected leaves","Apply fungicide"]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	server *Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T, cfg *config.Config, mlStatus int) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ml := mlStub(t, mlStatus)
	cfg.ML.URL = ml.URL

	store, err := sqlite.New(context.Background(), ":memory:", logger)
	require.NoError(t, err)

	srv := New(cfg, logger, "test", Deps{
		Store:    store,
		Analyzer: inference.NewGateway(logger, cfg.ML.URL, cfg.ML.Timeout),
	})
	t.Cleanup(func() { _ = srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: srv, http: ts}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(e.http.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// imageForm собирает multipart тело с одним PNG в поле image
func imageForm(t *testing.T, image []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+api.ImageField+`"; filename="leaf.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func (e *testEnv) submitScan(t *testing.T, path, token string, image []byte) *http.Response {
	t.Helper()

	body, contentType := imageForm(t, image)

	req, err := http.NewRequest(http.MethodPost, e.http.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, e.http.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) registerAndLogin(t *testing.T, email string) api.LoginResponse {
	t.Helper()

	creds := api.RegisterRequest{Email: email, Password: "correct-horse"}

	resp := e.postJSON(t, "/auth/register", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.postJSON(t, "/auth/login", api.LoginRequest{Email: creds.Email, Password: creds.Password})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return decode[api.LoginResponse](t, resp)
}

func TestServer_ScanFlow(t *testing.T) {
	env := newTestEnv(t, testConfig(), http.StatusOK)

	// регистрация
	resp := env.postJSON(t, "/auth/register", api.RegisterRequest{Email: "grower@farm.io", Password: "correct-horse"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	registered := decode[api.RegisterResponse](t, resp)
	assert.Equal(t, "User created successfully", registered.Message)
	require.NoError(t, uuid.Validate(registered.UserID))

	// повторная регистрация
	resp = env.postJSON(t, "/auth/register", api.RegisterRequest{Email: "grower@farm.io", Password: "correct-horse"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// вход
	resp = env.postJSON(t, "/auth/login", api.LoginRequest{Email: "grower@farm.io", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decode[api.LoginResponse](t, resp)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, registered.UserID, login.User.ID)
	assert.Equal(t, "grower@farm.io", login.User.Email)
	assert.True(t, login.ExpiresAt.After(time.Now()))

	// неверный пароль
	resp = env.postJSON(t, "/auth/login", api.LoginRequest{Email: "grower@farm.io", Password: "wrong-horse"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// скан
	resp = env.submitScan(t, "/scan", login.Token, pngImage)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	scan := decode[api.ScanResponse](t, resp)
	assert.Equal(t, registered.UserID, scan.UserID)
	assert.Equal(t, "Early Blight", scan.Disease)
	assert.InDelta(t, 0.87, scan.Confidence, 1e-9)
	assert.Equal(t, "HIGH", scan.Severity)
	assert.Equal(t, []string{"Remove infected leaves", "Apply fungicide"}, scan.Treatment)
	assert.Empty(t, scan.ImageKey)

	// чтение владельцем
	resp = env.get(t, "/scan/"+scan.ID, login.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decode[api.ScanResponse](t, resp)
	assert.Equal(t, scan.ID, fetched.ID)
	assert.Equal(t, scan.Treatment, fetched.Treatment)
	assert.WithinDuration(t, scan.CreatedAt, fetched.CreatedAt, time.Millisecond)

	// тот же маршрут под /api
	resp = env.get(t, APIPrefix+"/scan/"+scan.ID, login.Token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// чужой пользователь
	other := env.registerAndLogin(t, "neighbour@farm.io")
	resp = env.get(t, "/scan/"+scan.ID, other.Token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Access denied", decode[api.ErrorResponse](t, resp).Message)

	// без токена
	resp = env.get(t, "/scan/"+scan.ID, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// отсутствующий скан
	resp = env.get(t, "/scan/"+uuid.NewString(), login.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// некорректный id
	resp = env.get(t, "/scan/not-a-uuid", login.Token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// пустой id
	for _, path := range []string{"/scan/", "/scan", APIPrefix + "/scan/"} {
		resp = env.get(t, path, login.Token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Equal(t, service.MsgScanIDRequired, decode[api.ErrorResponse](t, resp).Message, path)
	}

	resp = env.get(t, "/scan/", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_ScanErrors(t *testing.T) {
	t.Run("ml unavailable", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), http.StatusServiceUnavailable)
		login := env.registerAndLogin(t, "a@farm.io")

		resp := env.submitScan(t, "/scan", login.Token, pngImage)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, inference.MsgUnavailable, decode[api.ErrorResponse](t, resp).Message)
	})

	t.Run("ml failure", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), http.StatusInternalServerError)
		login := env.registerAndLogin(t, "a@farm.io")

		resp := env.submitScan(t, "/scan", login.Token, pngImage)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, inference.MsgAnalysisFailed, decode[api.ErrorResponse](t, resp).Message)
	})

	t.Run("oversized upload", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxUploadSize = 1024
		env := newTestEnv(t, cfg, http.StatusOK)
		login := env.registerAndLogin(t, "a@farm.io")

		big := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 8<<10)...)
		resp := env.submitScan(t, "/scan", login.Token, big)
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("not an image", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), http.StatusOK)
		login := env.registerAndLogin(t, "a@farm.io")

		resp := env.submitScan(t, "/scan", login.Token, []byte("just some text, not pixels"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("without token", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), http.StatusOK)

		resp := env.submitScan(t, "/scan", "", pngImage)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestServer_AuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = 2
	env := newTestEnv(t, cfg, http.StatusOK)

	creds := api.LoginRequest{Email: "nobody@farm.io", Password: "whatever-pass"}
	for range 2 {
		resp := env.postJSON(t, "/auth/login", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := env.postJSON(t, "/auth/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// лимит общий для /auth и /api/auth
	resp = env.postJSON(t, APIPrefix+"/auth/register", api.RegisterRequest{Email: "x@farm.io", Password: "correct-horse"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// остальные маршруты не затронуты
	resp = env.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_CrossCutting(t *testing.T) {
	env := newTestEnv(t, testConfig(), http.StatusOK)

	t.Run("health", func(t *testing.T) {
		resp := env.get(t, "/health", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		health := decode[api.HealthResponse](t, resp)
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, "test", health.Version)
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		assert.Equal(t, "1000", resp.Header.Get("RateLimit-Limit"))
	})

	t.Run("preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, env.http.URL+"/scan", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("unknown route", func(t *testing.T) {
		resp := env.get(t, "/nope", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("health degraded after storage closed", func(t *testing.T) {
		require.NoError(t, env.server.Close())

		resp := env.get(t, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "degraded", decode[api.HealthResponse](t, resp).Status)
	})
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.New(context.Background(), ":memory:", logger)
	require.NoError(t, err)

	srv := New(cfg, logger, "test", Deps{
		Store:    store,
		Analyzer: inference.NewGateway(logger, "http://127.0.0.1:1", time.Second),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Error(t, store.Ping(context.Background()), "storage must be closed")
}

func TestOpenStorage_SQLite(t *testing.T) {
	store, err := OpenStorage(context.Background(), ":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
}

type panickingAnalyzer struct{}

func (panickingAnalyzer) Analyze(context.Context, []byte, string, string) (*models.Prediction, error) {
	panic("model exploded")
}

func TestServer_PanicIsAccessLogged(t *testing.T) {
	cfg := testConfig()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	store, err := sqlite.New(context.Background(), ":memory:", logger)
	require.NoError(t, err)

	srv := New(cfg, logger, "test", Deps{Store: store, Analyzer: panickingAnalyzer{}})
	t.Cleanup(func() { _ = srv.Close() })

	token, _, err := jwt.NewService(cfg.JWT.Secret, cfg.JWT.TTL).Issue(uuid.NewString(), "grower@farm.io")
	require.NoError(t, err)

	body, contentType := imageForm(t, pngImage)
	req := httptest.NewRequest(http.MethodPost, "/scan", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode[api.ErrorResponse](t, rec.Result()).Message)

	output := logs.String()
	assert.Contains(t, output, "Panic recovered")
	assert.Regexp(t, `msg="HTTP request" request_id=\S+ method=POST path=/scan route=/scan/\S* .*status=500`, output)
}
