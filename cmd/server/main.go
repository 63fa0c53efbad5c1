package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/habitloop/LivePulse/config"
	appengine "github.com/habitloop/LivePulse/internal/app/engine"
	appmodel "github.com/habitloop/LivePulse/internal/app/model"
	apprepository "github.com/habitloop/LivePulse/internal/app/repository"
	appserver "github.com/habitloop/LivePulse/internal/app/server"
	appservice "github.com/habitloop/LivePulse/internal/app/service"
	"github.com/habitloop/LivePulse/internal/infra/logger"
	infraNATS "github.com/habitloop/LivePulse/internal/infra/nats"
	infraPostgres "github.com/habitloop/LivePulse/internal/infra/postgres"
	infraPrometheus "github.com/habitloop/LivePulse/internal/infra/prometheus"
	infraRedis "github.com/habitloop/LivePulse/internal/infra/redis"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_user", cfg.Postgres.User),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
		zap.String("country_mode", cfg.Engine.CountryMode),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.ActivityRow{},
		&appmodel.User{},
		&appmodel.RankHistory{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()

	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	activityRepo := apprepository.NewActivityRepository(gormDB)
	userRepo := apprepository.NewUserRepository(gormDB)
	historyRepo := apprepository.NewRankHistoryRepository(gormDB)
	rollupRepo := apprepository.NewRollupRepository(pool)
	sessionRepo := apprepository.NewSessionRepository(pool)

	feed := appservice.NewChangeConsumer(js, log)

	eng := appengine.New(engineConfig(cfg.Engine, log), appengine.Deps{
		Logger:     log,
		Metrics:    appengine.NewMetrics(prometheus.DefaultRegisterer),
		Feed:       feed,
		Activities: activityRepo,
		Users:      userRepo,
		History:    historyRepo,
		Rollups:    rollupRepo,
		Sessions:   sessionRepo,
		Names:      nameResolver(userRepo),
	})

	if err := eng.Activate(ctx); err != nil {
		log.Fatal("Failed to activate live engine", zap.Error(err))
	}
	defer eng.Deactivate()
	log.Info("Live engine activated")

	snapshotter := appservice.NewRankSnapshotter(log, userRepo, historyRepo,
		parseDuration(cfg.Engine.RankSnapshotInterval, time.Hour))
	snapshotter.Start()
	defer snapshotter.Stop()

	publisher := appservice.NewActivityPublisher(js, activityRepo, log)

	server := appserver.New(appserver.Dependencies{
		Logger:    log,
		Postgres:  pool,
		Redis:     redisClient,
		NATS:      natsConn,
		JetStream: js,
		Engine:    eng,
		Publisher: publisher,
	})

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	if err := server.Listen(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}

// engineConfig maps the string-typed YAML settings onto the engine's config.
// Invalid or absent values fall back to the engine defaults.
func engineConfig(cfg config.EngineConfig, log *zap.Logger) appengine.Config {
	loc := time.Local
	if cfg.Timezone != "" {
		parsed, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Warn("Invalid engine timezone, using local",
				zap.String("timezone", cfg.Timezone), zap.Error(err))
		} else {
			loc = parsed
		}
	}

	return appengine.Config{
		FeedCapacity:    cfg.FeedCapacity,
		FeedTTL:         parseDuration(cfg.FeedTTL, 0),
		PulseCapacity:   cfg.PulseCapacity,
		PulseTTL:        parseDuration(cfg.PulseTTL, 0),
		DebounceWindow:  parseDuration(cfg.DebounceWindow, 0),
		RefreshInterval: parseDuration(cfg.RefreshInterval, 0),
		PresenceWindow:  parseDuration(cfg.PresenceWindow, 0),
		DailyXPCap:      int64(cfg.DailyXPCap),
		CountryMode:     appengine.Mode(cfg.CountryMode),
		Location:        loc,
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// nameResolver looks up display names for activity rows that arrive without
// a username. Misses fall through to the anonymous placeholder.
func nameResolver(users apprepository.UserRepository) appengine.NameResolver {
	return func(id string) (string, bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		u, err := users.GetByID(ctx, id)
		if err != nil || u == nil || u.Username == "" {
			return "", false
		}
		return u.Username, true
	}
}
