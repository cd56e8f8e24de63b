package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"idealista-watcher/internal/aggregator"
	"idealista-watcher/internal/config"
	"idealista-watcher/internal/crawler"
	"idealista-watcher/internal/fetcher"
	"idealista-watcher/internal/notify"
	"idealista-watcher/internal/search"
	"idealista-watcher/internal/storage"
	"idealista-watcher/internal/tracker"
	"idealista-watcher/internal/watcher"
)

func main() {
	var (
		configPath = flag.String("config", getEnv("CONFIG_PATH", "config/watcher_config.yaml"), "path to config file")
		searchURL  = flag.String("url", "", "search URL to watch (overrides config)")
		once       = flag.Bool("once", false, "run a single check and exit")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v. Using defaults.", *configPath, err)
		cfg = config.DefaultConfig()
	}

	if *searchURL != "" {
		cfg.Watcher.SearchURL = *searchURL
	}
	if cfg.Watcher.SearchURL == "" && !cfg.Aggregator.Enabled {
		log.Fatal("No listing source configured. Set watcher.search_url (or pass -url), or enable the aggregator.")
	}

	var store storage.Store
	switch cfg.Database.Type {
	case "mysql":
		gormStore, err := storage.NewGormStore(
			cfg.Database.MySQL.Host,
			portString(cfg.Database.MySQL.Port, "3306"),
			cfg.Database.MySQL.User,
			cfg.Database.MySQL.Password,
			cfg.Database.MySQL.Database,
		)
		if err != nil {
			log.Fatalf("Failed to connect to MySQL: %v", err)
		}
		if err := gormStore.InitSchema(); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		store = gormStore
	case "postgres":
		pgStore, err := storage.NewPostgresStore(
			cfg.Database.Postgres.Host,
			portString(cfg.Database.Postgres.Port, "5432"),
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.Database,
		)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := pgStore.InitSchema(); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		store = pgStore
	default:
		log.Println("No database configured, new listings go to notifications only")
	}
	if store != nil {
		defer store.Close()
	}

	var searchClient *search.SearchClient
	if cfg.Search.Meilisearch.Host != "" {
		searchClient = search.NewSearchClient(cfg.Search.Meilisearch.Host, cfg.Search.Meilisearch.APIKey)
		if err := searchClient.InitIndex(); err != nil {
			log.Printf("Warning: Failed to initialize search index: %v", err)
		}
	}

	pageFetcher := fetcher.NewWithConfig(fetcher.Config{
		Timeout:      cfg.Fetcher.GetTimeout(),
		MaxRetries:   cfg.Fetcher.MaxRetries,
		RetryDelay:   cfg.Fetcher.GetRetryDelay(),
		RequestDelay: cfg.Fetcher.GetRequestDelay(),
		ChromePath:   cfg.Fetcher.ChromePath,
	})

	notifier := notify.NewManager(notify.Config{
		Channels:         cfg.Notify.Channels,
		TelegramBotToken: cfg.Notify.TelegramBotToken,
		TelegramChatID:   cfg.Notify.TelegramChatID,
		SlackWebhookURL:  cfg.Notify.SlackWebhookURL,
	})

	seenTracker := tracker.New(cfg.Watcher.SeenFile)

	w := watcher.New(cfg.Watcher, crawler.New(), pageFetcher, seenTracker,
		store, notifier, searchClient)

	if cfg.Aggregator.Enabled {
		if cfg.Aggregator.APIKey == "" {
			log.Fatal("Aggregator enabled but no API key configured. Set RAPIDAPI_KEY or aggregator.api_key.")
		}
		log.Printf("Using aggregation API source (%s)", cfg.Aggregator.APIHost)
		w.SetAggregator(aggregator.New(cfg.Aggregator, cfg.Watcher.MinPrice, cfg.Watcher.MaxPrice))
	}

	if *once {
		stats, err := w.RunOnce()
		if err != nil {
			log.Fatalf("Watch run failed: %v", err)
		}
		log.Printf("Done: %d found, %d new, %d stored", stats.Found, stats.New, stats.Stored)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	w.Run(ctx)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func portString(port int, defaultValue string) string {
	if port > 0 {
		return fmt.Sprintf("%d", port)
	}
	return defaultValue
}
