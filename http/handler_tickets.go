package http

import (
	"fmt"
	"net/http"

	"ticketchain/entities"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"
)

type mintTicketRequest struct {
	EventID     int64  `json:"event_id"`
	Owner       string `json:"owner"`
	MetadataURI string `json:"metadata_uri"`
	Payment     uint64 `json:"payment"`
}

type checkInRequest struct {
	TicketID  int64  `json:"ticket_id"`
	Caller    string `json:"caller"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

type transferRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
}

func (h Handler) PostTickets(c echo.Context) error {
	var request mintTicketRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	if request.EventID < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "event_id is required")
	}
	owner, err := parseAddress(request.Owner)
	if err != nil {
		return err
	}

	ticketID, err := h.ticketRepo.Mint(c.Request().Context(), entities.MintRequest{
		EventID:     request.EventID,
		Owner:       owner,
		MetadataURI: request.MetadataURI,
		Payment:     request.Payment,
	})
	if err != nil {
		return fmt.Errorf("failed minting ticket: %w", err)
	}

	return c.JSON(http.StatusCreated, entities.TicketMintResponse{TicketID: ticketID})
}

func (h Handler) GetTicketByID(c echo.Context) error {
	ticketID, err := pathID(c, "ticket_id")
	if err != nil {
		return err
	}

	ticket, err := h.ticketRepo.ByID(c.Request().Context(), ticketID)
	if err != nil {
		return fmt.Errorf("failed getting ticket: %w", err)
	}

	return c.JSON(http.StatusOK, ticket)
}

func (h Handler) GetEventTickets(c echo.Context) error {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return err
	}

	if c.QueryParam("holders") == "true" {
		holders, err := h.ticketRepo.Holders(c.Request().Context(), eventID)
		if err != nil {
			return fmt.Errorf("failed getting event holders: %w", err)
		}

		return c.JSON(http.StatusOK, holders)
	}

	tickets, err := h.ticketRepo.ByEvent(c.Request().Context(), eventID)
	if err != nil {
		return fmt.Errorf("failed getting event tickets: %w", err)
	}

	return c.JSON(http.StatusOK, tickets)
}

func (h Handler) PostCheckIn(c echo.Context) error {
	eventID, err := pathID(c, "event_id")
	if err != nil {
		return err
	}

	var request checkInRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	caller, err := parseAddress(request.Caller)
	if err != nil {
		return err
	}
	signature, err := hexutil.Decode(request.Signature)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "signature must be 0x-prefixed hex")
	}

	err = h.checkInVerifier.CheckIn(c.Request().Context(), entities.CheckInRequest{
		EventID:   eventID,
		TicketID:  request.TicketID,
		Caller:    caller,
		Message:   request.Message,
		Signature: signature,
		Timestamp: request.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed checking in ticket: %w", err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h Handler) PostTransfer(c echo.Context) error {
	ticketID, err := pathID(c, "ticket_id")
	if err != nil {
		return err
	}

	var request transferRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	caller, err := parseAddress(request.Caller)
	if err != nil {
		return err
	}
	to, err := parseAddress(request.To)
	if err != nil {
		return err
	}

	if err := h.ticketRepo.Transfer(c.Request().Context(), ticketID, caller, to); err != nil {
		return fmt.Errorf("failed transferring ticket: %w", err)
	}

	return c.NoContent(http.StatusNoContent)
}
