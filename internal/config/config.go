package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	BackendNeo4j  = "neo4j"
	BackendSQLite = "sqlite"
)

// Config holds all server configuration
type Config struct {
	// MCP transport: "stdio" or "http"
	Transport string `env:"MCP_TRANSPORT" envDefault:"stdio"`
	HTTPAddr  string `env:"MCP_HTTP_ADDR" envDefault:":8081"`

	// Graph backend: "neo4j" or "sqlite"
	Backend string `env:"GRAPH_BACKEND" envDefault:"neo4j"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Number of nodes/relationships sampled per label/type by introspect_schema
	SchemaSampleSize int `env:"SCHEMA_SAMPLE_SIZE" envDefault:"1"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Neo4j  Neo4jConfig
	SQLite SQLiteConfig
}

// Neo4jConfig holds Neo4j connection settings
type Neo4jConfig struct {
	URI                string        `env:"NEO4J_URI" envDefault:"bolt://localhost:7687"`
	Username           string        `env:"NEO4J_USERNAME" envDefault:"neo4j"`
	Password           string        `env:"NEO4J_PASSWORD" envDefault:""`
	Database           string        `env:"NEO4J_DATABASE" envDefault:""`
	MaxPoolSize        int           `env:"NEO4J_MAX_POOL_SIZE" envDefault:"50"`
	AcquisitionTimeout time.Duration `env:"NEO4J_ACQUISITION_TIMEOUT" envDefault:"60s"`
}

// SQLiteConfig holds the embedded store settings
type SQLiteConfig struct {
	DataDir string `env:"SQLITE_DATA_DIR" envDefault:"./data"`
}

// Load reads .env and .env.local when present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local") // local values take precedence

	return Parse()
}

// Parse builds a Config from the current environment only. The result is
// not validated: callers apply their overrides first, then call Validate.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("invalid MCP_TRANSPORT %q: must be %q or %q", c.Transport, TransportStdio, TransportHTTP)
	}
	switch c.Backend {
	case BackendNeo4j, BackendSQLite:
	default:
		return fmt.Errorf("invalid GRAPH_BACKEND %q: must be %q or %q", c.Backend, BackendNeo4j, BackendSQLite)
	}
	if c.SchemaSampleSize < 1 {
		return fmt.Errorf("invalid SCHEMA_SAMPLE_SIZE %d: must be at least 1", c.SchemaSampleSize)
	}
	if c.Backend == BackendNeo4j && c.Neo4j.URI == "" {
		return fmt.Errorf("NEO4J_URI is required for the neo4j backend")
	}
	if c.Backend == BackendSQLite && c.SQLite.DataDir == "" {
		return fmt.Errorf("SQLITE_DATA_DIR is required for the sqlite backend")
	}
	return nil
}
