package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// executionLogsHandler handles GET /execution-logs/task/:id.
func (s *Server) executionLogsHandler(c *echo.Context) error {
	logs, err := s.db.ListLogsForTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, logs)
}

// codeReviewHandler handles GET /code-reviews/task/:id.
func (s *Server) codeReviewHandler(c *echo.Context) error {
	review, err := s.db.GetReviewForTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, review)
}
