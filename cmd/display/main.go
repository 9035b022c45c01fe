// Command display runs a headless display client against a photo wall
// server. It keeps a synchronized local copy of the visible set and logs
// every change, which is useful for smoke-testing the broadcast path
// without a browser.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/creceideas/muralla/internal/display"
	"github.com/creceideas/muralla/internal/domain"
)

func main() {
	if err := run(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	serverURL := flag.String("server", "http://localhost:3001", "photo wall server base URL")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	client := display.NewClient(*serverURL, func(view []domain.Submission) {
		logger.Info("view changed", "images", len(view))
		for i, sub := range view {
			logger.Info("image", "pos", i, "uid", sub.ID, "sender", sub.SenderName, "caption", sub.Caption)
		}
	}, logger)

	return client.Run(ctx)
}
