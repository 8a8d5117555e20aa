package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h Handler) GetPayout(c echo.Context) error {
	address, err := parseAddress(c.Param("address"))
	if err != nil {
		return err
	}

	payout, err := h.payoutRepo.Balance(c.Request().Context(), address)
	if err != nil {
		return fmt.Errorf("failed getting payout balance: %w", err)
	}

	return c.JSON(http.StatusOK, payout)
}
