package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/deepfinance/chat-client/internal/api"
	"github.com/deepfinance/chat-client/internal/channel"
	"github.com/deepfinance/chat-client/internal/credstore"
	"github.com/deepfinance/chat-client/internal/session"
	"github.com/deepfinance/chat-client/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfgPath := "config.yaml"
	if p := os.Getenv("CHAT_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", cfgPath))
	}

	// Initialize credential store
	var creds credstore.Store
	if cfg.Auth.TokenFile != "" {
		creds = credstore.NewFileStore(cfg.Auth.TokenFile)
	} else {
		logger.Info("Using in-memory credential store")
		creds = credstore.NewMemoryStore()
	}
	if cfg.Auth.Token != "" {
		if err := creds.SaveToken(cfg.Auth.Token); err != nil {
			logger.Fatal("Failed to store configured token", zap.Error(err))
		}
	}

	// Initialize directory client and channel
	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.RequestTimeout, logger)
	manager := channel.NewManager(cfg.Server.SocketURL, logger)

	sync := session.New(client, manager, logger)
	manager.OnFrame(sync.HandleFrame)
	manager.OnClose(func(err error) {
		logger.Warn("Channel lost; use /connect to reconnect")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := newREPL(sync, client, manager, creds, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sync.Run(ctx)
	})
	g.Go(func() error {
		defer stop()
		return console.run(ctx)
	})

	// Connect and populate the session if a token is already stored.
	token, err := creds.Token()
	switch {
	case err == nil:
		client.SetToken(token)
		if err := manager.Connect(ctx, token); err != nil {
			logger.Warn("Could not open channel; use /connect to retry")
		}
		if err := sync.RefreshThreads(ctx); err != nil {
			logger.Warn("Could not fetch threads; use /threads to retry")
		}
	case errors.Is(err, credstore.ErrNotAuthenticated):
		logger.Info("Not authenticated; use /login <email> <password>")
	default:
		logger.Fatal("Failed to read stored token", zap.Error(err))
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Client error", zap.Error(err))
	}
	_ = manager.Close()
}
