package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type listTicketRequest struct {
	Caller string `json:"caller"`
	Price  uint64 `json:"price"`
}

type cancelListingRequest struct {
	Caller string `json:"caller"`
}

type purchaseRequest struct {
	Caller  string `json:"caller"`
	Payment uint64 `json:"payment"`
}

func (h Handler) PostListing(c echo.Context) error {
	ticketID, err := pathID(c, "ticket_id")
	if err != nil {
		return err
	}

	var request listTicketRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	caller, err := parseAddress(request.Caller)
	if err != nil {
		return err
	}

	if err := h.marketRepo.List(c.Request().Context(), ticketID, caller, request.Price); err != nil {
		return fmt.Errorf("failed listing ticket: %w", err)
	}

	return c.NoContent(http.StatusCreated)
}

func (h Handler) DeleteListing(c echo.Context) error {
	ticketID, err := pathID(c, "ticket_id")
	if err != nil {
		return err
	}

	var request cancelListingRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	caller, err := parseAddress(request.Caller)
	if err != nil {
		return err
	}

	if err := h.marketRepo.Cancel(c.Request().Context(), ticketID, caller); err != nil {
		return fmt.Errorf("failed cancelling listing: %w", err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h Handler) GetListing(c echo.Context) error {
	ticketID, err := pathID(c, "ticket_id")
	if err != nil {
		return err
	}

	listing, err := h.marketRepo.ListingByTicket(c.Request().Context(), ticketID)
	if err != nil {
		return fmt.Errorf("failed getting listing: %w", err)
	}

	return c.JSON(http.StatusOK, listing)
}

func (h Handler) PostPurchase(c echo.Context) error {
	ticketID, err := pathID(c, "ticket_id")
	if err != nil {
		return err
	}

	var request purchaseRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	caller, err := parseAddress(request.Caller)
	if err != nil {
		return err
	}

	if err := h.marketRepo.Buy(c.Request().Context(), ticketID, caller, request.Payment); err != nil {
		return fmt.Errorf("failed buying ticket: %w", err)
	}

	return c.NoContent(http.StatusNoContent)
}
