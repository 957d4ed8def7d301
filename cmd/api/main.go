package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"shoplink-shopify-layer/internal/application"
	"shoplink-shopify-layer/internal/config"
	apiinfra "shoplink-shopify-layer/internal/infrastructure/api"
	"shoplink-shopify-layer/internal/infrastructure/metrics"
	"shoplink-shopify-layer/internal/infrastructure/repository"
	shopifyinfra "shoplink-shopify-layer/internal/infrastructure/shopify"
	"shoplink-shopify-layer/internal/infrastructure/statestore"
	"shoplink-shopify-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()
	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer store.Close(ctx)

	states, err := newStateTracker(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize state tracker")
	}

	shopifyClient := shopifyinfra.NewClient(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, logger)

	oauthService := application.NewOAuthService(store, shopifyClient, states, application.OAuthConfig{
		APISecret:            cfg.ShopifyAPISecret,
		InstallSigningSecret: cfg.InstallSigningSecret,
		Scopes:               cfg.ShopifyScopes,
		AppBaseURL:           cfg.AppBaseURL,
		SkipInstallAuth:      cfg.SkipInstallAuth,
	}, logger)

	// No embedding host SDK is wired here; checkout reports the host as
	// unavailable until a HostService implementation is configured.
	storefrontService := application.NewStorefrontService(store, shopifyClient, nil, logger)

	m := metrics.NewDefault()
	handler := apiinfra.NewHandler(oauthService, storefrontService, m, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	handler.Routes(r)

	logger.Info().Str("port", cfg.Port).Str("backend", cfg.StorageBackend).Msg("Starting API server")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

func newStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ports.ShopStore, error) {
	switch cfg.StorageBackend {
	case config.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("Using MongoDB store")
		return repository.NewMongoStore(ctx, client, cfg.MongoDatabase)
	default:
		logger.Info().Str("path", cfg.DatabasePath).Msg("Using SQLite store")
		return repository.NewSQLiteStore(ctx, cfg.DatabasePath)
	}
}

func newStateTracker(cfg *config.Config) (ports.StateTracker, error) {
	switch cfg.StateTracking {
	case config.StateTrackingRedis:
		return statestore.NewRedisTracker(cfg.RedisURL, cfg.StateTTL)
	case config.StateTrackingOff:
		return nil, nil
	default:
		return statestore.NewMemoryTracker(cfg.StateTTL), nil
	}
}
