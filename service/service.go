package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ticketchain/db"
	ledgerHttp "ticketchain/http"
	"ticketchain/message"
	"ticketchain/message/event"
	"ticketchain/message/outbox"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	watermillMessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func init() {
	log.Init(logrus.InfoLevel)
}

type Service struct {
	watermillRouter *watermillMessage.Router
	echoRouter      *echo.Echo
	addr            string
}

func New(
	redisClient *redis.Client,
	conn db.DB,
	port string,
	checkInMaxAge time.Duration,
) Service {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	redisPublisher := message.NewRedisPublisher(redisClient, watermillLogger)
	eventBus := event.NewBus(redisPublisher)

	eventRegistry := db.NewEventRegistry(&conn)
	ticketRepo := db.NewTicketRepository(&conn)
	marketRepo := db.NewMarketRepository(&conn)
	revenueRepo := db.NewRevenueRepository(&conn)
	payoutRepo := db.NewPayoutRepository(&conn)
	checkInVerifier := db.NewCheckInVerifier(&conn, checkInMaxAge)
	statsReadModel := db.NewEventStatsReadModel(&conn, eventBus)
	dataLakeRepo := db.NewDataLakeRepository(&conn)

	eventProcessorConfig := event.NewProcessorConfig(redisClient, watermillLogger)

	pgSubscriber := outbox.SubscribeForPGMessages(conn.Conn, watermillLogger)
	watermillRouter := message.NewWatermillRouter(
		pgSubscriber,
		redisClient,
		redisPublisher,
		eventProcessorConfig,
		statsReadModel,
		dataLakeRepo,
		watermillLogger,
	)

	echoRouter := ledgerHttp.NewHttpRouter(
		eventRegistry,
		ticketRepo,
		marketRepo,
		revenueRepo,
		payoutRepo,
		checkInVerifier,
		statsReadModel,
	)

	return Service{
		watermillRouter: watermillRouter,
		echoRouter:      echoRouter,
		addr:            fmt.Sprintf(":%s", port),
	}
}

func (s Service) Run(
	ctx context.Context,
) error {
	errgrp, ctx := errgroup.WithContext(ctx)

	errgrp.Go(func() error {
		return s.watermillRouter.Run(ctx)
	})

	errgrp.Go(func() error {
		// we don't want to start HTTP server before Watermill router (so service won't be healthy before it's ready)
		<-s.watermillRouter.Running()

		err := s.echoRouter.Start(s.addr)
		if err != nil && err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	errgrp.Go(func() error {
		<-ctx.Done()
		return s.echoRouter.Shutdown(context.Background())
	})

	return errgrp.Wait()
}
