package http

import (
	"net/http"

	libHttp "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

func NewHttpRouter(
	eventRegistry EventRegistry,
	ticketRepo TicketRepository,
	marketRepo MarketRepository,
	revenueRepo RevenueRepository,
	payoutRepo PayoutRepository,
	checkInVerifier CheckInVerifier,
	eventStatsRepo EventStatsRepository,
) *echo.Echo {
	e := libHttp.NewEcho()

	e.HTTPErrorHandler = errorHandler
	e.Use(otelecho.Middleware("ticketchain"))
	e.Use(metricsMiddleware)

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handler := Handler{
		eventRegistry:   eventRegistry,
		ticketRepo:      ticketRepo,
		marketRepo:      marketRepo,
		revenueRepo:     revenueRepo,
		payoutRepo:      payoutRepo,
		checkInVerifier: checkInVerifier,
		eventStatsRepo:  eventStatsRepo,
	}

	e.POST("/events", handler.PostEvents)
	e.GET("/events", handler.GetEvents)
	e.GET("/events/:event_id", handler.GetEventByID)
	e.PUT("/events/:event_id/active", handler.PutEventActive)
	e.GET("/events/:event_id/revenue", handler.GetEventRevenue)
	e.POST("/events/:event_id/withdrawals", handler.PostWithdrawal)
	e.POST("/events/:event_id/check-ins", handler.PostCheckIn)
	e.GET("/events/:event_id/tickets", handler.GetEventTickets)

	e.POST("/tickets", handler.PostTickets)
	e.GET("/tickets/:ticket_id", handler.GetTicketByID)
	e.POST("/tickets/:ticket_id/listing", handler.PostListing)
	e.DELETE("/tickets/:ticket_id/listing", handler.DeleteListing)
	e.GET("/tickets/:ticket_id/listing", handler.GetListing)
	e.POST("/tickets/:ticket_id/purchase", handler.PostPurchase)
	e.POST("/tickets/:ticket_id/transfer", handler.PostTransfer)

	e.GET("/accounts/:address/payout", handler.GetPayout)

	e.GET("/ops/events", handler.GetOpsEvents)
	e.GET("/ops/events/:event_id", handler.GetOpsEventByID)

	return e
}
