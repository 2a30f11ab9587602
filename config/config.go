// Package config loads the YAML configuration used by the cosmosq command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Backends a configuration can select.
const (
	BackendGremlin = "gremlin"
	BackendNeo4j   = "neo4j"
)

// Config is the root configuration.
type Config struct {
	// Backend selects the transport: "gremlin" (Gremlin Server or Cosmos DB)
	// or "neo4j".
	Backend string        `yaml:"backend" validate:"required,oneof=gremlin neo4j"`
	Gremlin GremlinConfig `yaml:"gremlin"`
	Neo4j   Neo4jConfig   `yaml:"neo4j"`
	Log     LogConfig     `yaml:"log"`
}

// GremlinConfig configures the websocket transport.
type GremlinConfig struct {
	// Endpoint is the ws:// or wss:// URL of the server.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
	// Database and Graph identify a Cosmos DB graph. ResourcePath joins
	// them for diagnostics; they are not sent to the server.
	Database string `yaml:"database"`
	Graph    string `yaml:"graph"`
	// Timeout bounds each query. Zero means no limit.
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
	MimeType string        `yaml:"mime_type"`
}

// Neo4jConfig configures the Neo4j transport.
type Neo4jConfig struct {
	URI      string `yaml:"uri" validate:"omitempty,uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendGremlin,
		Gremlin: GremlinConfig{
			Endpoint: "ws://localhost:8182/gremlin",
			Timeout:  30 * time.Second,
			MimeType: "application/json",
		},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	switch c.Backend {
	case BackendGremlin:
		if c.Gremlin.Endpoint == "" {
			return errors.New("gremlin.endpoint is required")
		}
	case BackendNeo4j:
		if c.Neo4j.URI == "" {
			return errors.New("neo4j.uri is required")
		}
	}
	return nil
}

// ResourcePath returns the Cosmos DB resource path, "/dbs/<db>/colls/<graph>",
// or "" when no database is configured.
func (g GremlinConfig) ResourcePath() string {
	if g.Database == "" || g.Graph == "" {
		return ""
	}
	return fmt.Sprintf("/dbs/%s/colls/%s", g.Database, g.Graph)
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
// and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filepath.Base(path), err)
	}
	return config, nil
}

// formatValidationError turns validator errors into readable messages keyed
// by YAML path.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatFieldError(e))
	}
	return errors.New(strings.Join(messages, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := yamlPath(e.Namespace())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url", "uri":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "gte":
		return fmt.Sprintf("%s must not be negative", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// yamlPath converts a validator namespace such as "Config.Gremlin.Endpoint"
// into "gremlin.endpoint".
func yamlPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, ".")
}
