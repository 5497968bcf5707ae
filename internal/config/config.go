package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations are parsed once here so the rest of
// the application never touches raw strings.
type Config struct {
    Env         string // application environment (e.g. "dev", "prod")
    Port        string // HTTP port to listen on
    StoreDriver string // "mysql" or "memory"
    DBUser      string // database username
    DBPass      string // database password (optional)
    DBHost      string // database host address
    DBPort      string // database port number
    DBName      string // database name
    JWTSecret   string // secret used to verify service and admin tokens
    RabbitURL   string // AMQP broker URL; empty disables publishing and consuming

    Hold    HoldConfig
    Pricing PricingConfig
}

// HoldConfig groups the settings of the hold/lease engine and its sweeper.
type HoldConfig struct {
    TTL             time.Duration // lifetime of a seat hold
    MaxPerSession   int           // seats one session may hold per event seating
    SweepInterval   time.Duration // how often expired holds are reclaimed
    SweepBatchSize  int           // expired holds processed per sweep
}

// PricingConfig controls the pricing decision cache.
type PricingConfig struct {
    CacheTTL    time.Duration // upper bound for a cached decision in Redis
    CachePrefix string        // Redis key namespace
}

// Load reads configuration values from environment variables and returns a
// Config.  Database settings are only required when the MySQL store is
// selected; the in-memory store runs without them.
func Load() Config {
    cfg := Config{
        Env:         envStr("APP_ENV", "dev"),
        Port:        envStr("APP_PORT", "8080"),
        StoreDriver: envStr("STORE_DRIVER", "mysql"),
        JWTSecret:   must("JWT_SECRET"),
        RabbitURL:   rabbitURL(),
        Hold: HoldConfig{
            TTL:            time.Duration(envInt("HOLD_TTL_SECONDS", 600)) * time.Second,
            MaxPerSession:  envInt("MAX_SEATS_PER_SESSION", 10),
            SweepInterval:  envDur("SWEEP_INTERVAL", 30*time.Second),
            SweepBatchSize: envInt("SWEEP_BATCH_SIZE", 500),
        },
        Pricing: PricingConfig{
            CacheTTL:    envDur("PRICING_CACHE_TTL", 10*time.Minute),
            CachePrefix: envStr("PRICING_CACHE_PREFIX", "price"),
        },
    }
    if cfg.StoreDriver == "mysql" {
        cfg.DBUser = must("DB_USER")
        cfg.DBPass = os.Getenv("DB_PASS")
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = envStr("DB_PORT", "3306")
        cfg.DBName = must("DB_NAME")
    }
    if cfg.Hold.MaxPerSession < 1 { cfg.Hold.MaxPerSession = 1 }
    if cfg.Hold.TTL <= 0 { cfg.Hold.TTL = 600 * time.Second }
    if cfg.Hold.SweepInterval <= 0 { cfg.Hold.SweepInterval = 30 * time.Second }
    if cfg.Hold.SweepBatchSize < 1 { cfg.Hold.SweepBatchSize = 500 }
    return cfg
}

// rabbitURL honours both RABBITMQ_URL and the older AMQP_URL name.
func rabbitURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}
