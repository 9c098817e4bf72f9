// Package config loads gridrank settings from GRIDRANK_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "GRIDRANK_"

// Config is the full process configuration.
type Config struct {
	// StorageDriver is one of memory, sqlite, postgres, mongo.
	StorageDriver string         `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	SQLite        SQLiteConfig   `envPrefix:"SQLITE_"`
	Postgres      PostgresConfig `envPrefix:"POSTGRES_"`
	Mongo         MongoConfig    `envPrefix:"MONGO_"`
	Blob          BlobConfig     `envPrefix:"BLOB_"`
	Log           LogConfig      `envPrefix:"LOG_"`
	Telemetry     TelemetryConfig
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path string `env:"PATH" envDefault:"gridrank.db"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	DSN string `env:"DSN" envDefault:"postgres://localhost/gridrank?sslmode=disable"`
}

// MongoConfig configures the document backend.
type MongoConfig struct {
	URI      string        `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string        `env:"DATABASE" envDefault:"gridrank"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// BlobConfig configures where backups are written.
type BlobConfig struct {
	// Driver is one of fs, s3, memory.
	Driver string   `env:"DRIVER" envDefault:"fs"`
	FSRoot string   `env:"FS_ROOT" envDefault:"./backups"`
	S3     S3Config `envPrefix:"S3_"`
}

// S3Config configures the S3 blob driver.
type S3Config struct {
	Bucket       string `env:"BUCKET"`
	Region       string `env:"REGION" envDefault:"us-east-1"`
	Endpoint     string `env:"ENDPOINT"`
	UsePathStyle bool   `env:"PATH_STYLE"`
	Prefix       string `env:"PREFIX"`
}

// TelemetryConfig selects the metrics recorder and tracer. Its variables
// carry no extra prefix: GRIDRANK_METRICS, GRIDRANK_TRACE and so on.
type TelemetryConfig struct {
	// Metrics is prometheus or expvar.
	Metrics string `env:"METRICS" envDefault:"prometheus"`
	// Trace is empty (off), json or otel.
	Trace string `env:"TRACE"`
	// OTLPEndpoint is the OTLP/HTTP traces URL used by the otel tracer. When
	// empty, otel spans are created but not exported.
	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"gridrank"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Load reads the given .env files (".env" when none are named), ignoring
// missing ones, then parses the environment. Variables already set in the
// process win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
