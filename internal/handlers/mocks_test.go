package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thriftin-utm/account-service/internal/auth"
	"github.com/thriftin-utm/account-service/internal/models"
	"github.com/thriftin-utm/account-service/internal/services"
	pkghttp "github.com/thriftin-utm/account-service/pkg/http"
)

type mockAuthService struct {
	LoginFunc       func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResponse, error)
	CurrentUserFunc func(ctx context.Context, accountID string) (*services.UserResponse, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ipAddress, userAgent)
	}
	return nil, models.ErrUnauthorized
}

func (m *mockAuthService) CurrentUser(ctx context.Context, accountID string) (*services.UserResponse, error) {
	if m.CurrentUserFunc != nil {
		return m.CurrentUserFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}

type mockRegistrationService struct {
	RegisterFunc func(ctx context.Context, email, matricNumber, password string) (*models.Account, error)
}

func (m *mockRegistrationService) Register(ctx context.Context, email, matricNumber, password string) (*models.Account, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, matricNumber, password)
	}
	return &models.Account{ID: "acct-1"}, nil
}

type mockResetService struct {
	RequestResetFunc func(ctx context.Context, email string) error
	ConfirmResetFunc func(ctx context.Context, email, code, newPassword string) error
}

func (m *mockResetService) RequestReset(ctx context.Context, email string) error {
	if m.RequestResetFunc != nil {
		return m.RequestResetFunc(ctx, email)
	}
	return nil
}

func (m *mockResetService) ConfirmReset(ctx context.Context, email, code, newPassword string) error {
	if m.ConfirmResetFunc != nil {
		return m.ConfirmResetFunc(ctx, email, code, newPassword)
	}
	return nil
}

type mockAdminService struct {
	GetDashboardStatsFunc   func(ctx context.Context) (*services.DashboardStatsResponse, error)
	RecentLoginAttemptsFunc func(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
	UnlockAccountFunc       func(ctx context.Context, adminID, accountID string) error
}

func (m *mockAdminService) GetDashboardStats(ctx context.Context) (*services.DashboardStatsResponse, error) {
	if m.GetDashboardStatsFunc != nil {
		return m.GetDashboardStatsFunc(ctx)
	}
	return &services.DashboardStatsResponse{}, nil
}

func (m *mockAdminService) RecentLoginAttempts(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	if m.RecentLoginAttemptsFunc != nil {
		return m.RecentLoginAttemptsFunc(ctx, limit)
	}
	return []*models.LoginAttempt{}, nil
}

func (m *mockAdminService) UnlockAccount(ctx context.Context, adminID, accountID string) error {
	if m.UnlockAccountFunc != nil {
		return m.UnlockAccountFunc(ctx, adminID, accountID)
	}
	return nil
}

// newJSONRequest creates an HTTP request with a JSON body
func newJSONRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withClaims adds token claims to the request context
func withClaims(req *http.Request, accountID, role string) *http.Request {
	claims := &models.TokenClaims{Type: "access", UserID: accountID, Role: role}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
