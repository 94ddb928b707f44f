package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vedran77/replychain/internal/config"
	"github.com/vedran77/replychain/internal/database"
	"github.com/vedran77/replychain/internal/logging"
	"github.com/vedran77/replychain/internal/repository"
	postgresrepo "github.com/vedran77/replychain/internal/repository/postgres"
	sqliterepo "github.com/vedran77/replychain/internal/repository/sqlite"
	"github.com/vedran77/replychain/internal/service"
	"github.com/vedran77/replychain/internal/transport/http/handlers"
	"github.com/vedran77/replychain/internal/transport/http/middleware"
	"github.com/vedran77/replychain/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := logging.Setup(cfg.LogLevel); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	eventRepo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()
	log.WithField("driver", cfg.StoreDriver).Info("Connected to event store")

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Services
	eventService := service.NewEventService(eventRepo)
	eventService.SetNotifier(ws.NewHubNotifier(hub))

	// Routes
	mux := http.NewServeMux()
	handlers.Routes(mux, handlers.NewEventHandler(eventService), middleware.Auth(cfg.JWTSecret))
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, cfg.JWTSecret))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           middleware.CORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.Infof("Starting server on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.EventRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqliterepo.NewEventRepo(db), func() { db.Close() }, nil

	default:
		pool, err := database.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgresrepo.NewEventRepo(pool), pool.Close, nil
	}
}
