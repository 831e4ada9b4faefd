package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/plydojo/game-server/internal/auth"
	appcfg "github.com/plydojo/game-server/internal/config"
	"github.com/plydojo/game-server/internal/coordinator"
	"github.com/plydojo/game-server/internal/gateway"
	"github.com/plydojo/game-server/internal/httpapi"
	"github.com/plydojo/game-server/internal/obslog"
	"github.com/plydojo/game-server/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis url error: %v", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("redis connect error: %v", err)
	}
	cancel()

	st, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connect error: %v", err)
	}

	coord := coordinator.New(st, rdb, coordinator.Config{
		MatchInterval:  cfg.MatchInterval,
		SweepInterval:  cfg.SweepInterval,
		SessionTimeout: cfg.SessionTimeout,
		RematchTimeout: cfg.RematchTimeout,
	})

	verifier := auth.NewRedisVerifier(rdb)
	ws := gateway.NewServer(cfg.WSAddr, coord, verifier)
	coord.SetNotifier(ws)

	if err := coord.Start(); err != nil {
		log.Fatalf("scheduler start error: %v", err)
	}

	app := httpapi.New(coord, verifier, st, redisPinger{rdb})

	go func() {
		if err := ws.ListenAndServe(); err != nil {
			obslog.L().Fatal("ws_listen_error", zap.Error(err))
		}
	}()
	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			obslog.L().Fatal("http_listen_error", zap.Error(err))
		}
	}()
	obslog.L().Info("server_start",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("ws_addr", cfg.WSAddr),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.L().Info("server_shutdown")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = coord.Stop()
	_ = app.ShutdownWithContext(shutdownCtx)
	_ = ws.Shutdown(shutdownCtx)
	_ = st.Close()
	_ = rdb.Close()
}

type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }
