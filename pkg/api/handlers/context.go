package handlers

import (
	"net/http"
	"time"

	custommw "github.com/jordanlanch/leadcrm/pkg/api/middleware"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/labstack/echo/v4"
)

// Request deadlines
const (
	singleLeadTimeout = 5 * time.Second
	queryTimeout      = 10 * time.Second
	fileTimeout       = 60 * time.Second
)

// callerScope returns the lead visibility of the authenticated caller.
func callerScope(c echo.Context) (models.Scope, bool) {
	return custommw.ScopeFromContext(c)
}

func unauthenticated(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: "User not authenticated",
	})
}
