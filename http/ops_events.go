package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h Handler) GetOpsEvents(c echo.Context) error {
	stats, err := h.eventStatsRepo.GetAll(c.Request().Context())
	if err != nil {
		return fmt.Errorf("failed getting event stats: %w", err)
	}

	return c.JSON(http.StatusOK, stats)
}

func (h Handler) GetOpsEventByID(c echo.Context) error {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return err
	}

	stats, err := h.eventStatsRepo.GetByID(c.Request().Context(), eventID)
	if err != nil {
		return fmt.Errorf("failed getting event stats: %w", err)
	}

	return c.JSON(http.StatusOK, stats)
}
