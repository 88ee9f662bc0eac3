package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/thriftin-utm/account-service/internal/auth"
	"github.com/thriftin-utm/account-service/internal/models"
	"github.com/thriftin-utm/account-service/internal/services"
	pkghttp "github.com/thriftin-utm/account-service/pkg/http"
)

// AdminServiceInterface defines the dashboard service contract.
type AdminServiceInterface interface {
	GetDashboardStats(ctx context.Context) (*services.DashboardStatsResponse, error)
	RecentLoginAttempts(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
	UnlockAccount(ctx context.Context, adminID, accountID string) error
}

// AdminHandler handles admin dashboard HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
}

func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// GetDashboardStats handles GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve dashboard stats")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

type loginAttemptsResponse struct {
	Attempts []*models.LoginAttempt `json:"attempts"`
}

// ListLoginAttempts handles GET /admin/login-attempts?limit=N
func (h *AdminHandler) ListLoginAttempts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			pkghttp.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	attempts, err := h.service.RecentLoginAttempts(r.Context(), limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve login attempts")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, loginAttemptsResponse{Attempts: attempts})
}

// UnlockAccount handles POST /admin/accounts/{id}/unlock
func (h *AdminHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "account id is required")
		return
	}

	var adminID string
	if claims := auth.GetUserFromContext(r); claims != nil {
		adminID = claims.UserID
	}

	if err := h.service.UnlockAccount(r.Context(), adminID, accountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to unlock account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
