package main

import (
	"context"
	"database/sql"
	"embed"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apppkg "github.com/mark3748/sla-engine-go/cmd/api/app"
	"github.com/mark3748/sla-engine-go/cmd/api/calendars"
	"github.com/mark3748/sla-engine-go/cmd/api/events"
	"github.com/mark3748/sla-engine-go/cmd/api/metrics"
	"github.com/mark3748/sla-engine-go/cmd/api/policies"
	"github.com/mark3748/sla-engine-go/cmd/api/timers"
	wspkg "github.com/mark3748/sla-engine-go/cmd/api/ws"
	"github.com/mark3748/sla-engine-go/internal/engine"
	"github.com/mark3748/sla-engine-go/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	_ = godotenv.Load()
	cfg := apppkg.GetConfig()
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	// Migrate (embedded goose) using pgx stdlib driver
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal().Err(err).Msg("goose dialect")
	}
	sqldb, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("sql open for goose")
	}
	defer sqldb.Close()
	if err := goose.UpContext(ctx, sqldb, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("migrate up")
	}

	// Redis client (optional)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error().Err(err).Msg("redis ping")
		}
		defer rdb.Close()
	}

	st := store.NewPostgres(pool)
	eng := engine.New(st, &engine.RedisSink{RDB: rdb}, nil)
	if err := eng.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("load engine state")
	}

	if rdb == nil && cfg.TickInterval > 0 {
		// No worker deployment without Redis; run the scheduler here so
		// breaches and firings still happen in single-binary setups.
		go func() {
			ticker := time.NewTicker(cfg.TickInterval)
			defer ticker.Stop()
			for range ticker.C {
				eng.Tick(ctx, time.Now())
			}
		}()
	}

	hub := wspkg.NewHub(rdb)
	go hub.Run(ctx)

	a := apppkg.NewApp(cfg, pool, eng, rdb)
	routes(a, hub)

	srv := &http.Server{
		Addr:           cfg.Addr,
		Handler:        a.R,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Info().Str("addr", cfg.Addr).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("listen")
	}
}

func routes(a *apppkg.App, hub *wspkg.Hub) {
	a.R.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	a.R.GET("/calendar", calendars.Get(a))
	a.R.PUT("/calendar", calendars.Put(a))

	a.R.POST("/timers", timers.Create(a))
	a.R.GET("/timers/:id", timers.Get(a))
	a.R.POST("/timers/:id/pause", timers.Pause(a))
	a.R.POST("/timers/:id/resume", timers.Resume(a))
	a.R.POST("/timers/:id/complete", timers.Complete(a))
	a.R.POST("/timers/:id/cancel", timers.Cancel(a))

	a.R.GET("/slas", policies.List(a))
	a.R.POST("/slas", policies.Create(a))

	a.R.GET("/events", events.Stream(a))
	a.R.GET("/ws", func(c *gin.Context) {
		conn, err := wspkg.Upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		cl := wspkg.NewClient(hub, conn)
		hub.Register(cl)
		go cl.WritePump(c.Request.Context())
		cl.ReadPump()
	})

	a.R.GET("/metrics", gin.WrapH(promhttp.Handler()))
	a.R.GET("/metrics/attainment", metrics.Attainment(a))
	a.R.GET("/metrics/consumed", metrics.AvgConsumed(a))
	a.R.GET("/metrics/escalations", metrics.EscalationVolume(a))
}
