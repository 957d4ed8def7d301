package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Storage backend selectors.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// State tracking selectors.
const (
	StateTrackingMemory = "memory"
	StateTrackingRedis  = "redis"
	StateTrackingOff    = "off"
)

// Config is the full environment-driven configuration of the service.
type Config struct {
	Port       string
	AppBaseURL string

	ShopifyAPIKey        string
	ShopifyAPISecret     string
	ShopifyScopes        []string
	InstallSigningSecret string
	// SkipInstallAuth disables install-token verification. Development only.
	SkipInstallAuth bool

	StorageBackend string
	DatabasePath   string
	MongoURI       string
	MongoDatabase  string

	StateTracking string
	RedisURL      string
	StateTTL      time.Duration
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads configuration from the environment, applying defaults and
// validating required values.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		AppBaseURL:           strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
		ShopifyAPIKey:        os.Getenv("SHOPIFY_API_KEY"),
		ShopifyAPISecret:     os.Getenv("SHOPIFY_API_SECRET"),
		InstallSigningSecret: os.Getenv("INSTALL_SIGNING_SECRET"),
		SkipInstallAuth:      os.Getenv("SKIP_INSTALL_AUTH") == "true",
		StorageBackend:       getEnv("STORAGE_BACKEND", BackendSQLite),
		DatabasePath:         getEnv("DATABASE_PATH", "shoplink.db"),
		MongoURI:             getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:        getEnv("MONGODB_DATABASE", "shoplink"),
		StateTracking:        getEnv("STATE_TRACKING", StateTrackingMemory),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379/0"),
	}

	scopes := getEnv("SHOPIFY_SCOPES", "read_products,write_products,read_orders,write_orders")
	for _, s := range strings.Split(scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.ShopifyScopes = append(cfg.ShopifyScopes, s)
		}
	}

	ttl := getEnv("STATE_TTL", "10m")
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return nil, fmt.Errorf("invalid STATE_TTL %q: %w", ttl, err)
	}
	cfg.StateTTL = d

	if cfg.ShopifyAPIKey == "" {
		return nil, fmt.Errorf("SHOPIFY_API_KEY is required")
	}
	if cfg.ShopifyAPISecret == "" {
		return nil, fmt.Errorf("SHOPIFY_API_SECRET is required")
	}
	if cfg.InstallSigningSecret == "" && !cfg.SkipInstallAuth {
		return nil, fmt.Errorf("INSTALL_SIGNING_SECRET is required unless SKIP_INSTALL_AUTH=true")
	}

	switch cfg.StorageBackend {
	case BackendSQLite, BackendMongo:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	switch cfg.StateTracking {
	case StateTrackingMemory, StateTrackingRedis, StateTrackingOff:
	default:
		return nil, fmt.Errorf("unknown STATE_TRACKING %q", cfg.StateTracking)
	}
	return cfg, nil
}
