package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/five82/marquee/internal/logging"
	"github.com/five82/marquee/internal/mockapi"
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "localhost:3022", "listen address")
	payTimeout := flag.Duration("pay-timeout", 3*time.Minute, "payment window for new bookings")
	latency := flag.Duration("latency", 0, "artificial delay added to every response")
	secret := flag.String("secret", "", "token signing secret (optional)")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	logger := logging.New(os.Stderr, logging.ParseLevel(*logLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := mockapi.NewStore(*payTimeout, nil)
	mockapi.Seed(store, time.Now())
	srv := mockapi.New(mockapi.Options{
		Store:   store,
		Secret:  *secret,
		Latency: *latency,
		Logger:  logger,
	})

	logger.Info("mock backend listening", slog.String("addr", *addr), slog.Duration("pay_timeout", *payTimeout))
	if err := srv.Start(ctx, *addr); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "marquee-mock: %v\n", err)
		return 1
	}
	return 0
}
