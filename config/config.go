// Package config reads the host configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	// DatabaseURL wins over the DB_* parts when set.
	DatabaseURL string
	Store       string

	RedisAddr string
	RedisPwd  string

	WebOrigin string
	RPID      string
	RPOrigins []string

	SessionTTL    time.Duration // passkey ceremony state
	AppSessionTTL time.Duration // login cookie
	SeenThrottle  time.Duration

	Port           string
	LogLevel       string
	LogFormat      string
	MigrateOnStart bool
}

// LoadEnv loads a .env file if there is one. A missing file is not an error.
func LoadEnv() {
	_ = godotenv.Load()
}

func get(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := get(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func getBool(k string, def bool) (bool, error) {
	v := get(k, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", k, v)
	}
	return b, nil
}

func csv(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads the configuration from the process environment. Call LoadEnv
// first to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: get("DATABASE_URL", ""),
		Store:       strings.ToLower(get("STORE", StorePostgres)),
		RedisAddr:   get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:    os.Getenv("REDIS_PASSWORD"),
		WebOrigin:   strings.TrimRight(get("WEB_ORIGIN", "http://localhost:3000"), "/"),
		RPID:        get("RP_ID", "localhost"),
		Port:        get("PORT", "3001"),
		LogLevel:    strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(get("LOG_FORMAT", "console")),
	}
	if cfg.Store != StorePostgres && cfg.Store != StoreMemory {
		return nil, fmt.Errorf("invalid STORE: %q (want %s or %s)", cfg.Store, StorePostgres, StoreMemory)
	}
	if cfg.Store == StorePostgres && cfg.DatabaseURL == "" {
		host := get("DB_HOST", "")
		if host == "" {
			return nil, fmt.Errorf("DATABASE_URL or DB_HOST is required when STORE=%s", StorePostgres)
		}
		cfg.DatabaseURL = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			host,
			get("DB_USER", "postgres"),
			os.Getenv("DB_PASSWORD"),
			get("DB_NAME", "lendbook"),
			get("DB_PORT", "5432"),
		)
	}

	cfg.RPOrigins = csv(get("RP_ORIGINS", cfg.WebOrigin))

	ttl, err := getInt("SESSION_TTL_SECONDS", 600)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = time.Duration(ttl) * time.Second

	appTTL, err := getInt("APP_SESSION_TTL_HOURS", 24)
	if err != nil {
		return nil, err
	}
	cfg.AppSessionTTL = time.Duration(appTTL) * time.Hour

	seen, err := getInt("LAST_SEEN_THROTTLE_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cfg.SeenThrottle = time.Duration(seen) * time.Second

	if cfg.MigrateOnStart, err = getBool("MIGRATE_ON_START", true); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SecureCookies reports whether session cookies should carry Secure.
func (c *Config) SecureCookies() bool { return strings.HasPrefix(c.WebOrigin, "https://") }
