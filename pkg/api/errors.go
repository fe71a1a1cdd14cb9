package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/tarsy/pkg/queue"
	"github.com/codeready-toolchain/tarsy/pkg/store"
)

// mapServiceError maps store/domain sentinel errors to the HTTP status
// codes spec.md §6.1 assigns them.
func mapServiceError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	case errors.Is(err, store.ErrCASConflict):
		return echo.NewHTTPError(http.StatusConflict, "task state changed concurrently")
	case errors.Is(err, queue.ErrAtCapacity):
		return echo.NewHTTPError(http.StatusConflict, "resource class at capacity")
	case errors.Is(err, queue.ErrNoTasksAvailable):
		return echo.NewHTTPError(http.StatusNotFound, "no pending tasks")
	default:
		slog.Error("unexpected API error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
