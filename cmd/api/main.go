package main

import (
	"fmt"
	"log"
	"os"

	"idealista-watcher/internal/aggregator"
	"idealista-watcher/internal/config"
	"idealista-watcher/internal/crawler"
	"idealista-watcher/internal/fetcher"
	"idealista-watcher/internal/handlers"
	"idealista-watcher/internal/imageproxy"
	"idealista-watcher/internal/notify"
	"idealista-watcher/internal/ratelimit"
	"idealista-watcher/internal/scheduler"
	"idealista-watcher/internal/search"
	"idealista-watcher/internal/storage"
	"idealista-watcher/internal/tracker"
	"idealista-watcher/internal/watcher"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	store        storage.Store
	searchClient *search.SearchClient
	appConfig    *config.Config
	rateLimiter  *ratelimit.RateLimiter
	appScheduler *scheduler.Scheduler
)

func main() {
	// Load configuration
	configPath := getEnv("CONFIG_PATH", "config/watcher_config.yaml")
	var err error
	appConfig, err = config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v. Using defaults.", configPath, err)
		appConfig = config.DefaultConfig()
	} else {
		log.Printf("Loaded configuration from %s", configPath)
	}

	// Initialize storage based on configuration
	dbType := appConfig.Database.Type
	if dbType == "" {
		dbType = getEnv("DB_TYPE", "none")
	}

	switch dbType {
	case "mysql":
		log.Println("Using MySQL with GORM")
		mysqlCfg := appConfig.Database.MySQL

		portStr := ""
		if mysqlCfg.Port > 0 {
			portStr = fmt.Sprintf("%d", mysqlCfg.Port)
		}

		gormStore, err := storage.NewGormStore(
			getEnvOrConfig(mysqlCfg.Host, "DB_HOST", "mysql"),
			getEnvOrConfig(portStr, "DB_PORT", "3306"),
			getEnvOrConfig(mysqlCfg.User, "DB_USER", "watcher_user"),
			getEnvOrConfig(mysqlCfg.Password, "DB_PASSWORD", "watcher_pass"),
			getEnvOrConfig(mysqlCfg.Database, "DB_NAME", "watcher_db"),
		)
		if err != nil {
			log.Fatalf("Failed to connect to MySQL: %v", err)
		}
		if err := gormStore.InitSchema(); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		store = gormStore
	case "postgres":
		log.Println("Using PostgreSQL")
		pgCfg := appConfig.Database.Postgres

		portStr := ""
		if pgCfg.Port > 0 {
			portStr = fmt.Sprintf("%d", pgCfg.Port)
		}

		pgStore, err := storage.NewPostgresStore(
			getEnvOrConfig(pgCfg.Host, "DB_HOST", "db"),
			getEnvOrConfig(portStr, "DB_PORT", "5432"),
			getEnvOrConfig(pgCfg.User, "DB_USER", "watcher_user"),
			getEnvOrConfig(pgCfg.Password, "DB_PASSWORD", "watcher_pass"),
			getEnvOrConfig(pgCfg.Database, "DB_NAME", "watcher_db"),
		)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := pgStore.InitSchema(); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		store = pgStore
	default:
		log.Println("No database configured, running without persistent storage")
	}
	if store != nil {
		defer store.Close()
	}

	// Initialize Meilisearch using config
	meilisearchHost := appConfig.Search.Meilisearch.Host
	if meilisearchHost == "" {
		meilisearchHost = getEnv("MEILISEARCH_HOST", "")
	}
	if meilisearchHost != "" {
		meilisearchKey := appConfig.Search.Meilisearch.APIKey
		if meilisearchKey == "" {
			meilisearchKey = getEnv("MEILISEARCH_KEY", "")
		}

		searchClient = search.NewSearchClient(meilisearchHost, meilisearchKey)
		if err := searchClient.InitIndex(); err != nil {
			log.Printf("Warning: Failed to initialize search index: %v", err)
		}
	} else {
		log.Println("No search engine configured, search endpoints disabled")
	}

	// Initialize rate limiter
	rateLimiter = ratelimit.NewRateLimiter(
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.Enabled,
	)
	log.Printf("Rate limiter initialized: %d req/min, %d req/hour (enabled: %v)",
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.Enabled,
	)

	// Page fetcher shared by scrape endpoints and the watcher
	pageFetcher := fetcher.NewWithConfig(fetcher.Config{
		Timeout:      appConfig.Fetcher.GetTimeout(),
		MaxRetries:   appConfig.Fetcher.MaxRetries,
		RetryDelay:   appConfig.Fetcher.GetRetryDelay(),
		RequestDelay: appConfig.Fetcher.GetRequestDelay(),
		ChromePath:   appConfig.Fetcher.ChromePath,
	})

	proxy := imageproxy.New()

	// Watcher and scheduler (only when a listing source is configured)
	if appConfig.Watcher.SearchURL != "" || appConfig.Aggregator.Enabled {
		seenTracker := tracker.New(appConfig.Watcher.SeenFile)
		notifier := notify.NewManager(notify.Config{
			Channels:         appConfig.Notify.Channels,
			TelegramBotToken: appConfig.Notify.TelegramBotToken,
			TelegramChatID:   appConfig.Notify.TelegramChatID,
			SlackWebhookURL:  appConfig.Notify.SlackWebhookURL,
		})

		w := watcher.New(appConfig.Watcher, crawler.New(), pageFetcher, seenTracker,
			store, notifier, searchClient)
		if appConfig.Aggregator.Enabled {
			w.SetAggregator(aggregator.New(appConfig.Aggregator,
				appConfig.Watcher.MinPrice, appConfig.Watcher.MaxPrice))
		}

		appScheduler = scheduler.NewScheduler(w, store, pageFetcher, appConfig)
		if err := appScheduler.Start(); err != nil {
			log.Printf("Warning: Failed to start scheduler: %v", err)
		}
		defer appScheduler.Stop()
	} else {
		log.Println("No listing source configured, watcher disabled")
	}

	// Setup Gin router
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{getEnv("CORS_ORIGIN", "http://localhost:5173")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	h := handlers.NewHandler(store, searchClient, pageFetcher, proxy, appScheduler,
		rateLimiter, appConfig.Fetcher.UseBrowser)

	// Routes
	r.GET("/health", h.HealthCheck)
	r.GET("/api/properties", h.GetListings)
	r.GET("/api/properties/:id", h.GetListing)
	r.GET("/api/search", h.SearchListings)

	r.POST("/api/parse-html", h.ParseHTML)

	// Scraping routes with rate limiting
	r.POST("/api/scrape", h.RateLimitMiddleware(), h.ScrapeURL)
	r.POST("/api/scrape/batch", h.RateLimitMiddleware(), h.ScrapeBatch)
	r.POST("/api/watch/run", h.RateLimitMiddleware(), h.TriggerWatchRun)

	// Image routes
	r.GET("/api/image-proxy", h.ImageProxy)
	r.POST("/api/download-photos", h.RateLimitMiddleware(), h.DownloadPhotos)

	r.GET("/api/ratelimit/stats", h.GetRateLimitStats)

	port := getEnv("PORT", "8084")
	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrConfig returns config value if set, otherwise falls back to environment variable, then default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, defaultValue)
}
