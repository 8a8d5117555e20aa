package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"ticketchain/db"
	"ticketchain/message"
	"ticketchain/service"
	observability "ticketchain/trace"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	tp := observability.ConfigureTraceProvider()
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Error("Failed to shut down trace provider")
		}
	}()

	conn, err := db.NewDBConn(os.Getenv("POSTGRES_URL"))
	if err != nil {
		panic(fmt.Errorf("failed to connect to postgres: %w", err))
	}
	defer conn.Close()

	conn.MigrateSchema()

	redisClient := message.NewRedisClient(os.Getenv("REDIS_ADDR"))
	defer redisClient.Close()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	var checkInMaxAge time.Duration
	if raw := os.Getenv("CHECKIN_MAX_AGE"); raw != "" {
		checkInMaxAge, err = time.ParseDuration(raw)
		if err != nil {
			panic(fmt.Errorf("invalid CHECKIN_MAX_AGE: %w", err))
		}
	}

	svc := service.New(redisClient, conn, port, checkInMaxAge)

	logrus.Info("Server starting...")

	if err := svc.Run(ctx); err != nil {
		panic(err)
	}
}
