package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jordanlanch/leadcrm/pkg/api/errors"
	custommw "github.com/jordanlanch/leadcrm/pkg/api/middleware"
	"github.com/jordanlanch/leadcrm/pkg/auth"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/labstack/echo/v4"
)

// AuthHandler handles token revocation. Tokens are issued elsewhere.
type AuthHandler struct {
	blacklist *auth.TokenBlacklist
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(blacklist *auth.TokenBlacklist) *AuthHandler {
	return &AuthHandler{blacklist: blacklist}
}

// Logout godoc
// @Summary Log out
// @Description Revokes the bearer token until it expires
// @Tags Auth
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	// Get token from context (set by JWT middleware)
	token, ok := c.Get(custommw.ContextToken).(string)
	if !ok || token == "" {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "missing_token",
			Message: "No token found in request",
		})
	}
	claims, _ := c.Get(custommw.ContextClaims).(*auth.Claims)

	if h.blacklist == nil {
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "logout_unavailable",
			Message: "Token revocation is not configured",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.blacklist.Revoke(ctx, token, claims); err != nil {
		return errors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: "Successfully logged out",
	})
}
