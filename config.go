package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is built once from the environment in main and passed into the app.
// Nothing reads os.Getenv after startup.
type Config struct {
	Port        string
	DatabaseURL string

	JWTSecret string
	JWTExpire time.Duration

	CORSOrigin string // comma-separated allow-list

	MLBackendURL   string
	PredictTimeout time.Duration
	HistoryTimeout time.Duration

	Env        string // development | production
	BcryptCost int

	SeedDatabase  bool
	AdminEmail    string
	AdminPassword string
}

func loadConfig() Config {
	return Config{
		Port:        getenv("PORT", "5000"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTExpire: getenvDuration("JWT_EXPIRE", 7*24*time.Hour),

		CORSOrigin: getenv("CORS_ORIGIN", "http://localhost:5173"),

		MLBackendURL:   getenv("ML_BACKEND_URL", "http://localhost:8000"),
		PredictTimeout: getenvDuration("ML_PREDICT_TIMEOUT", 30*time.Second),
		HistoryTimeout: getenvDuration("ML_HISTORY_TIMEOUT", 10*time.Second),

		Env:        getenv("APP_ENV", "production"),
		BcryptCost: getenvInt("BCRYPT_COST", 10),

		SeedDatabase:  os.Getenv("SEED_DATABASE") == "true",
		AdminEmail:    getenv("ADMIN_EMAIL", "admin@pf.com"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
}

// Validate checks the configuration before anything connects or listens.
func (c Config) Validate() error {
	var problems []string

	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}
	if c.JWTExpire < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid JWT_EXPIRE %v: must be at least 1 minute", c.JWTExpire))
	}
	if _, err := url.Parse(c.MLBackendURL); err != nil {
		problems = append(problems, fmt.Sprintf("invalid ML_BACKEND_URL %q: %v", c.MLBackendURL, err))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		problems = append(problems, fmt.Sprintf("invalid bcrypt cost %d: must be between 4 and 31", c.BcryptCost))
	}
	if c.SeedDatabase && c.AdminPassword == "" {
		problems = append(problems, "ADMIN_PASSWORD is required when SEED_DATABASE=true")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// allowedOrigins splits the comma-separated CORS allow-list, trimming
// whitespace and trailing slashes.
func (c Config) allowedOrigins() []string {
	var origins []string
	for _, p := range strings.Split(c.CORSOrigin, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c Config) isDev() bool { return c.Env == "development" }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
