package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bot.
type Config struct {
	Env string

	// Chat connection
	JID      string
	Password string
	Server   string // host:port, optional; resolved from JID when empty
	Room     string
	Nickname string
	Debug    bool // log outgoing messages instead of sending them

	// Persistence
	StoreBackend string // "bolt", "sqlite" or "redis"
	StoreDir     string
	RedisURL     string

	// Ops endpoint (health + metrics)
	OpsAddr string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Env:          getEnv("ENV", "development"),
		JID:          os.Getenv("LCTV_JID"),
		Password:     os.Getenv("LCTV_PASSWORD"),
		Server:       os.Getenv("LCTV_SERVER"),
		Room:         os.Getenv("LCTV_ROOM"),
		Nickname:     os.Getenv("LCTV_NICK"),
		Debug:        getEnv("LCTV_DEBUG", "false") == "true",
		StoreBackend: getEnv("STORE_BACKEND", "bolt"),
		StoreDir:     getEnv("STORE_DIR", "./data"),
		RedisURL:     os.Getenv("REDIS_URL"),
		OpsAddr:      getEnv("OPS_ADDR", ":9090"),
	}

	// In production, require full chat credentials
	if cfg.Env == "production" {
		if cfg.JID == "" || cfg.Password == "" {
			panic("LCTV_JID and LCTV_PASSWORD are required in production")
		}
		if cfg.Room == "" || cfg.Nickname == "" {
			panic("LCTV_ROOM and LCTV_NICK are required in production")
		}
	}

	if cfg.StoreBackend == "redis" && cfg.RedisURL == "" {
		panic("REDIS_URL is required with STORE_BACKEND=redis")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
