package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"offer-recommendation-api/internal/cache"
	"offer-recommendation-api/internal/config"
	"offer-recommendation-api/internal/database"
	"offer-recommendation-api/internal/events"
	"offer-recommendation-api/internal/features"
	"offer-recommendation-api/internal/handler"
	"offer-recommendation-api/internal/llm"
	"offer-recommendation-api/internal/middleware"
	"offer-recommendation-api/internal/recommend"
	"offer-recommendation-api/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize tracing
	if err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracing: %v", err)
		}
	}()

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize feed cache: Redis when configured, in-process otherwise
	var feedCache cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		feedCache = redisCache
		log.Printf("Feed cache: redis (%s)", cfg.Redis.Addr)
	} else {
		feedCache = cache.NewInMemoryCache()
		log.Printf("Feed cache: in-memory")
	}

	// Initialize the AI augmenter; without an API key the pipeline runs
	// rule-based scoring only
	var augmenter recommend.Augmenter
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewHTTPClient(llm.ClientConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			log.Fatalf("Failed to create LLM client: %v", err)
		}
		augmenter = llm.NewAugmenter(client)
		log.Printf("LLM augmentation: enabled (model %s)", cfg.LLM.Model)
	} else {
		log.Printf("LLM augmentation: disabled (no API key)")
	}

	// Feature flags
	flags := features.NewManager()
	flags.Register(features.FeatureLLMEnabled, augmenter != nil, "AI offer augmentation")
	flags.Register(features.FeatureCacheEnabled, true, "recommendation TTL cache")
	flags.Register(features.FeatureFeedRecording, true, "feed analytics rows")

	// Events with a logging subscriber for served feeds
	eventManager := events.NewManager(true)
	defer eventManager.Shutdown()
	eventManager.Subscribe(events.EventRecommendationServed, func(ctx context.Context, ev events.Event) error {
		if data, ok := ev.Data.(events.RecommendationServedData); ok {
			log.Printf("served feed: user=%s store=%s persona=%q offers=%d cached=%t",
				data.UserID, data.StoreID, data.Persona, len(data.OfferIDs), data.FromCache)
		}
		return nil
	})

	// Recommendation orchestrator
	recommender := recommend.NewService(
		db, db, db,
		feedCache,
		augmenter,
		flags,
		eventManager,
		recommend.Options{
			CacheTTL:      time.Duration(cfg.Recommendation.CacheTTLSeconds) * time.Second,
			HistoryWindow: cfg.Recommendation.HistoryWindow,
			TopK:          cfg.Recommendation.TopK,
		},
	)

	// Handlers
	h := handler.NewHandlerWithOptions(db, recommender, eventManager, handler.NewHandlerOptions{
		MaxBodySize: cfg.Server.MaxRequestBodySize,
	})

	// Rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
	defer rateLimiter.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if cfg.Tracing.Enabled {
		r.Use(middleware.TracingMiddleware())
	}

	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Server.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Routes
	r.Route("/offers", func(r chi.Router) {
		r.Post("/", h.CreateOffer)
	})

	r.Route("/purchases", func(r chi.Router) {
		r.Post("/", h.CreatePurchases)
	})

	r.Route("/stores", func(r chi.Router) {
		r.Get("/{store_id}/offers", h.GetStoreOffers)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/{user_id}/stores/{store_id}/recommendations", h.GetRecommendations)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting HTTP server on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)
	log.Printf("Cache TTL: %ds, history window: %d, top-K: %d",
		cfg.Recommendation.CacheTTLSeconds, cfg.Recommendation.HistoryWindow, cfg.Recommendation.TopK)

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
