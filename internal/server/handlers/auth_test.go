package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/cropscan/internal/apperr"
	"github.com/iudanet/cropscan/internal/models"
	"github.com/iudanet/cropscan/internal/server/service"
	"github.com/iudanet/cropscan/pkg/api"
)

// mockIdentityService is a mock implementation of IdentityService for testing
type mockIdentityService struct {
	registerFunc func(ctx context.Context, email, password string) (string, error)
	loginFunc    func(ctx context.Context, email, password string) (*service.LoginResult, error)
}

func (m *mockIdentityService) Register(ctx context.Context, email, password string) (string, error) {
	return m.registerFunc(ctx, email, password)
}

func (m *mockIdentityService) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	return m.loginFunc(ctx, email, password)
}

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		registerErr    error
		name           string
		body           string
		wantMessage    string
		expectedStatus int
	}{
		{
			name:           "successful registration",
			body:           `{"email":"farmer@example.com","password":"password123"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid JSON",
			body:           `{"email":`,
			expectedStatus: http.StatusBadRequest,
			wantMessage:    "invalid request body",
		},
		{
			name:           "validation error",
			body:           `{"email":"farmer","password":"password123"}`,
			registerErr:    apperr.New(apperr.ErrValidation, "invalid email format"),
			expectedStatus: http.StatusBadRequest,
			wantMessage:    "invalid email format",
		},
		{
			name:           "duplicate email",
			body:           `{"email":"farmer@example.com","password":"password123"}`,
			registerErr:    apperr.New(apperr.ErrConflict, service.MsgUserExists),
			expectedStatus: http.StatusBadRequest,
			wantMessage:    "User already exists",
		},
		{
			name:           "storage failure hides details",
			body:           `{"email":"farmer@example.com","password":"password123"}`,
			registerErr:    apperr.Wrap(apperr.ErrPersistence, "failed to register user", errors.New("database is locked")),
			expectedStatus: http.StatusInternalServerError,
			wantMessage:    "failed to register user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := &mockIdentityService{
				registerFunc: func(ctx context.Context, email, password string) (string, error) {
					if tt.registerErr != nil {
						return "", tt.registerErr
					}
					return "user-123", nil
				},
			}
			handler := NewAuthHandler(setupTestLogger(), identity)

			req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Register(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			if tt.expectedStatus == http.StatusCreated {
				var resp api.RegisterResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, "user-123", resp.UserID)
				assert.Equal(t, "User created successfully", resp.Message)
				return
			}

			errResp := decodeError(t, w)
			assert.Equal(t, http.StatusText(tt.expectedStatus), errResp.Error)
			assert.Equal(t, tt.wantMessage, errResp.Message)
			assert.NotContains(t, errResp.Message, "locked")
		})
	}
}

func TestAuthHandler_RegisterResponseShape(t *testing.T) {
	identity := &mockIdentityService{
		registerFunc: func(ctx context.Context, email, password string) (string, error) {
			return "user-123", nil
		},
	}
	handler := NewAuthHandler(setupTestLogger(), identity)

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"farmer@example.com","password":"password123"}`))
	w := httptest.NewRecorder()

	handler.Register(w, req)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "user-123", raw["userId"])
	assert.Contains(t, raw, "message")
}

func TestAuthHandler_Login(t *testing.T) {
	expiresAt := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		loginErr       error
		name           string
		body           string
		wantMessage    string
		expectedStatus int
	}{
		{
			name:           "successful login",
			body:           `{"email":"farmer@example.com","password":"password123"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid credentials",
			body:           `{"email":"farmer@example.com","password":"wrong-password"}`,
			loginErr:       apperr.New(apperr.ErrUnauthorized, service.MsgInvalidCredentials),
			expectedStatus: http.StatusUnauthorized,
			wantMessage:    "Invalid credentials",
		},
		{
			name:           "validation error",
			body:           `{"email":"","password":""}`,
			loginErr:       apperr.New(apperr.ErrValidation, "email cannot be empty"),
			expectedStatus: http.StatusBadRequest,
			wantMessage:    "email cannot be empty",
		},
		{
			name:           "invalid JSON",
			body:           `not json`,
			expectedStatus: http.StatusBadRequest,
			wantMessage:    "invalid request body",
		},
		{
			name:           "unexpected error",
			body:           `{"email":"farmer@example.com","password":"password123"}`,
			loginErr:       errors.New("failed to sign token: key is invalid"),
			expectedStatus: http.StatusInternalServerError,
			wantMessage:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := &mockIdentityService{
				loginFunc: func(ctx context.Context, email, password string) (*service.LoginResult, error) {
					if tt.loginErr != nil {
						return nil, tt.loginErr
					}
					return &service.LoginResult{
						Token:     "jwt-token",
						ExpiresAt: expiresAt,
						User:      models.Identity{ID: "user-123", Email: email},
					}, nil
				},
			}
			handler := NewAuthHandler(setupTestLogger(), identity)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			handler.Login(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var resp api.LoginResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, "jwt-token", resp.Token)
				assert.True(t, expiresAt.Equal(resp.ExpiresAt))
				assert.Equal(t, "user-123", resp.User.ID)
				assert.Equal(t, "farmer@example.com", resp.User.Email)
				return
			}

			errResp := decodeError(t, w)
			assert.Equal(t, tt.wantMessage, errResp.Message)
		})
	}
}

func TestAuthHandler_BodyTooLarge(t *testing.T) {
	identity := &mockIdentityService{
		registerFunc: func(ctx context.Context, email, password string) (string, error) {
			t.Fatal("service must not be called")
			return "", nil
		},
	}
	handler := NewAuthHandler(setupTestLogger(), identity)

	body := `{"email":"farmer@example.com","password":"` + strings.Repeat("a", maxAuthBodySize) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Register(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
