/*
Package config loads server settings.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file in the working directory (joho/godotenv), if present
  3. Process environment (VAULT_*)
  4. Command-line flags

ENVIRONMENT:
  VAULT_PORT            HTTP port (8080)
  VAULT_DB              SQLite path (vault.db), ":memory:" for tests
  VAULT_JWT_SECRET      HS256 signing key; random per process when unset
  VAULT_REDIS_ADDR      Redis address; replication is off when unset
  VAULT_REDIS_PASS      Redis password
  VAULT_REDIS_DB        Redis database number
  VAULT_REPLICA_ID      Identity in replication messages; random when unset
  VAULT_SEED_FILE       JSON state used when the database is empty
  VAULT_LOG_LEVEL       logrus level (info)
  VAULT_CHECK_INTERVAL  Invariant check period (1m), 0 disables
  VAULT_KEEP_SNAPSHOTS  Snapshots retained in SQLite (500), 0 keeps all
*/
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port          int
	DBPath        string
	JWTSecret     string
	RedisAddr     string
	RedisPass     string
	RedisDB       int
	ReplicaID     string
	SeedFile      string
	LogLevel      string
	CheckInterval time.Duration
	KeepSnapshots int

	// EphemeralSecret is set when no JWT secret was configured. Sessions
	// then do not survive a restart.
	EphemeralSecret bool
}

// Load reads .env and the environment, then applies args as flags.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()
	return Parse(args, os.Getenv)
}

// Parse builds a Config from getenv and flag args.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	port, err := strconv.Atoi(env("VAULT_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("VAULT_PORT: %w", err)
	}
	redisDB, err := strconv.Atoi(env("VAULT_REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("VAULT_REDIS_DB: %w", err)
	}
	interval, err := time.ParseDuration(env("VAULT_CHECK_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("VAULT_CHECK_INTERVAL: %w", err)
	}
	keep, err := strconv.Atoi(env("VAULT_KEEP_SNAPSHOTS", "500"))
	if err != nil {
		return nil, fmt.Errorf("VAULT_KEEP_SNAPSHOTS: %w", err)
	}

	cfg := &Config{}
	fs := flag.NewFlagSet("vault-server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", env("VAULT_DB", "vault.db"), "SQLite database path")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", getenv("VAULT_JWT_SECRET"), "JWT signing secret")
	fs.StringVar(&cfg.RedisAddr, "redis", getenv("VAULT_REDIS_ADDR"), "Redis address for replication")
	fs.StringVar(&cfg.RedisPass, "redis-pass", getenv("VAULT_REDIS_PASS"), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", redisDB, "Redis database number")
	fs.StringVar(&cfg.ReplicaID, "replica", getenv("VAULT_REPLICA_ID"), "Replica id")
	fs.StringVar(&cfg.SeedFile, "seed", getenv("VAULT_SEED_FILE"), "JSON state to seed an empty database")
	fs.StringVar(&cfg.LogLevel, "log-level", env("VAULT_LOG_LEVEL", "info"), "Log level")
	fs.DurationVar(&cfg.CheckInterval, "check-interval", interval, "Invariant check interval")
	fs.IntVar(&cfg.KeepSnapshots, "keep-snapshots", keep, "Snapshots kept in SQLite")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = uuid.NewString() + uuid.NewString()
		cfg.EphemeralSecret = true
	}
	if cfg.ReplicaID == "" {
		cfg.ReplicaID = uuid.NewString()
	}
	return cfg, nil
}

// Logger returns a logrus logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

// ReplicationEnabled reports whether a Redis address is configured.
func (c *Config) ReplicationEnabled() bool {
	return c.RedisAddr != ""
}
