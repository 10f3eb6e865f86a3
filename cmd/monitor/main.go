package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/api/handlers"
	"github.com/Muchai10/safeguardcrawler/internal/cache/redis"
	"github.com/Muchai10/safeguardcrawler/internal/ingestion"
	"github.com/Muchai10/safeguardcrawler/internal/llm"
	"github.com/Muchai10/safeguardcrawler/internal/metrics"
	"github.com/Muchai10/safeguardcrawler/internal/middleware/auth"
	"github.com/Muchai10/safeguardcrawler/internal/middleware/ratelimit"
	"github.com/Muchai10/safeguardcrawler/internal/middleware/security"
	"github.com/Muchai10/safeguardcrawler/internal/middleware/validation"
	"github.com/Muchai10/safeguardcrawler/internal/notify"
	"github.com/Muchai10/safeguardcrawler/internal/query"
	"github.com/Muchai10/safeguardcrawler/internal/scan"
	"github.com/Muchai10/safeguardcrawler/internal/scheduler"
	"github.com/Muchai10/safeguardcrawler/internal/search"
	"github.com/Muchai10/safeguardcrawler/internal/search/nitter"
	"github.com/Muchai10/safeguardcrawler/internal/search/twitter"
	"github.com/Muchai10/safeguardcrawler/internal/sentiment"
	"github.com/Muchai10/safeguardcrawler/internal/storage/postgres"
	"github.com/Muchai10/safeguardcrawler/internal/storage/sqlite"
	"github.com/Muchai10/safeguardcrawler/internal/threat"
	"github.com/Muchai10/safeguardcrawler/pkg/config"
	appLogger "github.com/Muchai10/safeguardcrawler/pkg/logger"
)

// store is what a storage driver provides to the sink and the query engine.
type store interface {
	ingestion.Upserter
	query.Reader
	handlers.Pinger
	InitSchema() error
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting SafeGuard threat monitor")
	metrics.Init()

	caps := handlers.Capabilities{}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, using in-process cache and counters", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			caps.Cache = true
		}
	}

	searchClient, mode := newSearchClient(cfg)
	caps.Search = mode

	analyzer := newAnalyzer(cfg, redisClient)
	caps.Sentiment = analyzer != nil

	db, driver := newStore(cfg)
	caps.Storage = driver
	if db != nil {
		defer db.Close()
	}

	lexicon := threat.NewLexicon(cfg.Threat.HighKeywords, cfg.Threat.MediumKeywords, cfg.Threat.LowKeywords, cfg.Threat.Locations)
	scorer := threat.NewScorer(lexicon, analyzer)

	executor := scan.NewExecutor(searchClient, scorer, scan.Config{
		Scope:            search.Scope{RegionTerms: cfg.Scan.RegionTerms, Language: cfg.Scan.Language},
		MaxResults:       cfg.Scan.MaxResults,
		KeywordDelay:     cfg.Scan.KeywordDelay(),
		AnonymizeAuthors: cfg.Scan.AnonymizeAuthors,
		AuthorSalt:       cfg.Scan.AuthorSalt,
	})

	hub := notify.NewHub()

	var (
		upserter ingestion.Upserter
		reader   query.Reader
		pinger   handlers.Pinger
	)
	if db != nil {
		upserter = db
		reader = db
		pinger = db
	}
	sink := ingestion.NewSink(upserter, hub, cfg.Storage.BackupPath)

	var counter scheduler.QuotaCounter
	if redisClient != nil {
		counter = redisClient
	}

	sched := scheduler.New(scheduler.Config{
		Interval:      cfg.Scan.Interval(),
		PauseInterval: cfg.Scan.PauseInterval(),
		DailyQuota:    cfg.Scan.DailyQuota,
		Keywords:      cfg.Scan.Keywords,
	}, searchClient, executor, sink, counter)

	appLogger.Info("Capabilities resolved",
		zap.String("search", caps.Search),
		zap.Bool("sentiment", caps.Sentiment),
		zap.String("storage", caps.Storage),
		zap.Bool("cache", caps.Cache),
	)

	var app *fiber.App
	var limiter *ratelimit.RateLimiter
	if cfg.Server.Enabled {
		app, limiter = newApp(cfg, query.NewEngine(reader), pinger, sched, hub, caps)

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		appLogger.Info("Server starting", zap.String("address", addr))

		go func() {
			if err := app.Listen(addr); err != nil {
				appLogger.Error("Server stopped listening", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-quit
		appLogger.Info("Shutdown signal received, finishing current cycle", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := sched.Run(ctx); err != nil {
		appLogger.Error("Scheduler exited with error", zap.Error(err))
	}

	if app != nil {
		appLogger.Info("Server shutting down gracefully...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			appLogger.Warn("Server shutdown incomplete", zap.Error(err))
		}
		limiter.Stop()
	}
	appLogger.Info("Monitor stopped")
}

func newSearchClient(cfg *config.Config) (search.Client, string) {
	timeout := time.Duration(cfg.Twitter.TimeoutSec) * time.Second

	switch {
	case cfg.Twitter.BearerToken != "":
		return twitter.NewClient(cfg.Twitter.BearerToken, cfg.Twitter.BaseURL, timeout), "twitter"
	case cfg.Twitter.NitterURL != "":
		appLogger.Warn("No Twitter bearer token, falling back to Nitter", zap.String("url", cfg.Twitter.NitterURL))
		return nitter.NewClient(cfg.Twitter.NitterURL, timeout), "nitter"
	default:
		appLogger.Warn("No search credentials configured, every cycle will be skipped")
		return search.Unavailable{Reason: "TWITTER_BEARER_TOKEN not set"}, "unavailable"
	}
}

func newAnalyzer(cfg *config.Config, cache *redis.Client) sentiment.Analyzer {
	if !cfg.Sentiment.Enabled || cfg.Sentiment.APIKey == "" {
		appLogger.Warn("Sentiment analysis disabled, records will carry N/A")
		return nil
	}

	llmClient := llm.NewClient(llm.Config{
		APIKey:  cfg.Sentiment.APIKey,
		BaseURL: cfg.Sentiment.BaseURL,
		Model:   cfg.Sentiment.Model,
		Timeout: time.Duration(cfg.Sentiment.TimeoutSec) * time.Second,
	})

	var analyzer sentiment.Analyzer = sentiment.NewLLMAnalyzer(llmClient)
	if cache != nil {
		ttl := time.Duration(cfg.Sentiment.CacheTTLMinutes) * time.Minute
		analyzer = sentiment.NewCachedAnalyzer(analyzer, cache, ttl)
	}
	return analyzer
}

// newStore never fails the process: a store that cannot be opened leaves the
// monitor in backup-only mode.
func newStore(cfg *config.Config) (store, string) {
	driver := strings.ToLower(cfg.Storage.Driver)
	if driver == "" && cfg.Storage.PostgresDSN != "" {
		driver = "postgres"
	}

	var (
		db  store
		err error
	)
	switch driver {
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			appLogger.Warn("storage.driver is postgres but no DSN is set")
			return nil, "none"
		}
		db, err = postgres.NewClient(cfg.Storage.PostgresDSN)
	case "sqlite":
		db, err = sqlite.NewClient(cfg.Storage.SQLitePath)
	default:
		appLogger.Warn("Remote storage not configured, running backup-only")
		return nil, "none"
	}

	if err != nil {
		appLogger.Error("Failed to open storage, running backup-only", zap.String("driver", driver), zap.Error(err))
		return nil, "none"
	}
	if err := db.InitSchema(); err != nil {
		appLogger.Error("Failed to initialize schema, running backup-only", zap.String("driver", driver), zap.Error(err))
		db.Close()
		return nil, "none"
	}
	return db, driver
}

func newApp(cfg *config.Config, engine *query.Engine, storage handlers.Pinger, sched *scheduler.Scheduler, hub *notify.Hub, caps handlers.Capabilities) (*fiber.App, *ratelimit.RateLimiter) {
	app := fiber.New(fiber.Config{
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		DisableStartupMessage: true,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RateLimitPerMinute,
		Logger:               appLogger.Named("ratelimit"),
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	app.Get("/metrics", metrics.MetricsHandler())

	alertsHandler := handlers.NewAlertsHandler(engine)
	scanHandler := handlers.NewScanHandler(sched, caps)
	wsHandler := handlers.NewWebSocketHandler(hub)

	api := app.Group("/api/v1")

	api.Get("/health", handlers.NewHealthHandler(storage).GetHealth)

	protected := api.Group("",
		limiter.Middleware(),
		auth.RequireBearer(cfg.Server.APIToken),
		validation.Middleware(validation.Config{
			MaxLimit: query.MaxLimit,
			MaxDays:  query.MaxDays,
			Logger:   appLogger.Named("validation"),
		}),
	)
	protected.Get("/alerts", alertsHandler.ListAlerts)
	protected.Get("/alerts/stats", alertsHandler.GetStats)
	protected.Get("/scraper-status", scanHandler.GetStatus)
	protected.Post("/scans", scanHandler.TriggerScan)

	app.Get("/ws/alerts",
		auth.RequireBearer(cfg.Server.APIToken),
		wsHandler.Upgrade,
		websocket.New(wsHandler.HandleConnection),
	)

	return app, limiter
}
