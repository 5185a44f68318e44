// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds the process-level settings.  Each field corresponds to an
// environment variable.
type Config struct {
	Env         string // application environment (e.g. "dev", "prod")
	Port        string // HTTP port to listen on
	StoreDriver string // "mysql" or "sqlite"
	SQLitePath  string // database file when StoreDriver is sqlite
	DBUser      string
	DBPass      string // optional
	DBHost      string
	DBPort      string
	DBName      string
	JWTSecret   string // verifies caller tokens; tokens are issued elsewhere
	AMQPURL     string // drift queue broker; empty disables publishing
}

// Load reads a .env file when present and then the environment.  Missing
// required variables end the process with a fatal log message.  The MySQL
// connection variables are only required for the mysql driver.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:         envStr("APP_ENV", "dev"),
		Port:        envStr("APP_PORT", "8080"),
		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		SQLitePath:  envStr("SQLITE_PATH", "data/hangouts.db"),
		DBPass:      os.Getenv("DB_PASS"),
		JWTSecret:   must("JWT_SECRET"),
		AMQPURL:     envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
	}
	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case DriverSQLite:
	default:
		log.Fatalf("invalid STORE_DRIVER %q (want mysql or sqlite)", cfg.StoreDriver)
	}
	return cfg
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
