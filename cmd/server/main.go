package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/relaychat/internal/auth"
	"github.com/Tyrowin/relaychat/internal/chat"
	"github.com/Tyrowin/relaychat/internal/logging"
	"github.com/Tyrowin/relaychat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relaychat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	var opts []chat.Option
	if cfg.UsersFile != "" {
		table, err := auth.LoadFile(cfg.UsersFile)
		if err != nil {
			return err
		}
		log.Info("users_loaded", "path", cfg.UsersFile, "count", table.Len())
		opts = append(opts, chat.WithAuthenticator(table))
	}

	engine := chat.NewEngine(log, cfg.Limits(), opts...)
	metrics := server.NewMetrics()
	hub := server.NewHub(engine, *cfg, log, metrics)
	go hub.Run()

	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub, *cfg, log, metrics))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, log)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = hub.Shutdown(cfg.ShutdownTimeout)
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown_signal_received")
	}

	serverErr := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log)
	hubErr := hub.Shutdown(cfg.ShutdownTimeout)
	return errors.Join(serverErr, hubErr)
}
