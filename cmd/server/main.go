// Command server is the chat server's entrypoint (C12): it loads
// configuration, wires every component, and runs the accept loop until an
// interrupt or terminate signal arrives (spec.md §6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	_ "go.uber.org/automaxprocs"

	"github.com/anarthal/servertech-chat-sub000/internal/auth"
	"github.com/anarthal/servertech-chat-sub000/internal/chat"
	"github.com/anarthal/servertech-chat-sub000/internal/config"
	"github.com/anarthal/servertech-chat-sub000/internal/dbpool"
	"github.com/anarthal/servertech-chat-sub000/internal/history"
	"github.com/anarthal/servertech-chat-sub000/internal/httpapi"
	"github.com/anarthal/servertech-chat-sub000/internal/kv"
	"github.com/anarthal/servertech-chat-sub000/internal/logging"
	"github.com/anarthal/servertech-chat-sub000/internal/mysqlrepo"
	"github.com/anarthal/servertech-chat-sub000/internal/pubsub"
	"github.com/anarthal/servertech-chat-sub000/internal/ratelimit"
	"github.com/anarthal/servertech-chat-sub000/internal/resourceguard"
	"github.com/anarthal/servertech-chat-sub000/internal/server"
	"github.com/anarthal/servertech-chat-sub000/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) != 4 {
		return fmt.Errorf("usage: %s <address> <port> <doc_root>", os.Args[0])
	}
	args := config.CLIArgs{Address: os.Args[1], Port: os.Args[2], DocRoot: os.Args[3]}

	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	logLevel := zerolog.InfoLevel
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = zerolog.DebugLevel
	}
	logFormat := logging.FormatJSON
	if os.Getenv("LOG_FORMAT") == "pretty" {
		logFormat = logging.FormatPretty
	}
	logger := logging.New(logging.Config{Level: logLevel, Format: logFormat})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connector, err := dbpool.NewMySQLConnector(cfg.DSN(), dbpool.DefaultConfig().MaxSize)
	if err != nil {
		return fmt.Errorf("main: mysql connector: %w", err)
	}
	pool := dbpool.New(dbpool.DefaultConfig(), connector, logger)
	go pool.Run(ctx)

	users := mysqlrepo.New(pool)

	kvClient := kv.New(kv.Config{Host: cfg.RedisHost, Port: cfg.RedisPort}, logger)
	defer kvClient.Close()

	sessions := session.New(kvClient)
	authenticator := &auth.Authenticator{Resolver: sessions, Users: users}
	historySvc := history.New(kvClient, users)

	bus := pubsub.New(logger, 1024)
	defer bus.Close()

	guard, err := resourceguard.New(resourceguard.DefaultConfig(), logger)
	if err != nil {
		return fmt.Errorf("main: resource guard: %w", err)
	}

	limiter := ratelimit.New(ratelimit.DefaultConfig(), logger)

	chatDeps := chat.Deps{
		Auth:     authenticator,
		Appender: kvClient,
		History:  historySvc,
		Bus:      bus,
		Logger:   logger,
	}

	handler := httpapi.New(users, users, sessions, cfg.DocRoot, chatDeps, logger)

	srv := server.New(server.DefaultConfig(cfg.Address+":"+cfg.Port), handler, guard, limiter, pool, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("main: received shutdown signal")
		cancel()
	}()

	return srv.Run(ctx)
}
