package http

import (
	"fmt"
	"net/http"

	"ticketchain/entities"

	"github.com/labstack/echo/v4"
)

type createEventRequest struct {
	Name         string `json:"name"`
	Price        uint64 `json:"price"`
	TotalTickets int    `json:"total_tickets"`
	SoulBound    bool   `json:"soul_bound"`
	Organizer    string `json:"organizer"`
}

type setActiveRequest struct {
	Caller string `json:"caller"`
	Active bool   `json:"active"`
}

type withdrawalRequest struct {
	Caller string `json:"caller"`
}

type revenueResponse struct {
	EventID int64  `json:"event_id"`
	Revenue uint64 `json:"revenue"`
}

type withdrawalResponse struct {
	EventID int64  `json:"event_id"`
	Amount  uint64 `json:"amount"`
}

func (h Handler) PostEvents(c echo.Context) error {
	var request createEventRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	if request.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if request.TotalTickets < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "total_tickets must be greater than 0")
	}
	organizer, err := parseAddress(request.Organizer)
	if err != nil {
		return err
	}

	eventID, err := h.eventRegistry.Create(c.Request().Context(), entities.Event{
		Name:         request.Name,
		Price:        request.Price,
		TotalTickets: request.TotalTickets,
		SoulBound:    request.SoulBound,
		Organizer:    organizer,
	})
	if err != nil {
		return fmt.Errorf("failed creating event: %w", err)
	}

	return c.JSON(http.StatusCreated, entities.EventCreateResponse{EventID: eventID})
}

func (h Handler) PutEventActive(c echo.Context) error {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return err
	}

	var request setActiveRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	caller, err := parseAddress(request.Caller)
	if err != nil {
		return err
	}

	if err := h.eventRegistry.SetActive(c.Request().Context(), eventID, caller, request.Active); err != nil {
		return fmt.Errorf("failed setting event status: %w", err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h Handler) GetEvents(c echo.Context) error {
	events, err := h.eventRegistry.All(c.Request().Context())
	if err != nil {
		return fmt.Errorf("failed getting events: %w", err)
	}

	return c.JSON(http.StatusOK, events)
}

func (h Handler) GetEventByID(c echo.Context) error {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return err
	}

	event, err := h.eventRegistry.ByID(c.Request().Context(), eventID)
	if err != nil {
		return fmt.Errorf("failed getting event: %w", err)
	}

	return c.JSON(http.StatusOK, event)
}

func (h Handler) GetEventRevenue(c echo.Context) error {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return err
	}

	revenue, err := h.revenueRepo.Revenue(c.Request().Context(), eventID)
	if err != nil {
		return fmt.Errorf("failed getting revenue: %w", err)
	}

	return c.JSON(http.StatusOK, revenueResponse{EventID: eventID, Revenue: revenue})
}

func (h Handler) PostWithdrawal(c echo.Context) error {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return err
	}

	var request withdrawalRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	caller, err := parseAddress(request.Caller)
	if err != nil {
		return err
	}

	amount, err := h.revenueRepo.Withdraw(c.Request().Context(), eventID, caller)
	if err != nil {
		return fmt.Errorf("failed withdrawing revenue: %w", err)
	}

	return c.JSON(http.StatusOK, withdrawalResponse{EventID: eventID, Amount: amount})
}
