package connector

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Konsultn-Engineering/esql/dialect"
)

// Config represents database connection configuration.
type Config struct {
	Driver         string            `json:"driver" yaml:"driver"`
	Dialect        string            `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	DSN            string            `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Host           string            `json:"host" yaml:"host"`
	Port           int               `json:"port" yaml:"port"`
	Database       string            `json:"database" yaml:"database"`
	Username       string            `json:"username" yaml:"username"`
	Password       string            `json:"password" yaml:"password"`
	SSLMode        string            `json:"ssl_mode" yaml:"ssl_mode"`
	Params         map[string]string `json:"params" yaml:"params"`
	Pool           PoolConfig        `json:"pool" yaml:"pool"`
	ConnectTimeout time.Duration     `json:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout   time.Duration     `json:"query_timeout" yaml:"query_timeout"`
	Retry          *RetryConfig      `json:"retry,omitempty" yaml:"retry,omitempty"`

	// Lazy defers connecting until the first statement.
	Lazy bool `json:"lazy" yaml:"lazy"`

	// Substitutions are added to the substitution table when a connection
	// is opened. TablePrefix, when set, resolves unknown :Name: tokens to
	// prefixed plural snake-case table names.
	Substitutions map[string]string `json:"substitutions,omitempty" yaml:"substitutions,omitempty"`
	TablePrefix   string            `json:"table_prefix,omitempty" yaml:"table_prefix,omitempty"`

	MaxDepth  int `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	CacheSize int `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
}

// PoolConfig defines connection pool settings.
type PoolConfig struct {
	MaxOpen         int           `json:"max_open" yaml:"max_open"`
	MaxIdle         int           `json:"max_idle" yaml:"max_idle"`
	MaxLifetime     time.Duration `json:"max_lifetime" yaml:"max_lifetime"`
	MaxIdleTime     time.Duration `json:"max_idle_time" yaml:"max_idle_time"`
	HealthCheckFreq time.Duration `json:"health_check_freq" yaml:"health_check_freq"`
}

// RetryConfig defines connection retry behavior.
type RetryConfig struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay" yaml:"max_delay"`
	Backoff    float64       `json:"backoff" yaml:"backoff"`
}

// configAliases maps accepted alternative keys to their canonical names.
var configAliases = map[string]string{
	"user":        "username",
	"pass":        "password",
	"hostname":    "host",
	"dbname":      "database",
	"substitutes": "substitutions",
	"sslmode":     "ssl_mode",
}

// UnmarshalYAML accepts the aliased keys. When both an alias and its
// canonical key are present the canonical one wins.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		present := make(map[string]bool, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			present[node.Content[i].Value] = true
		}
		content := make([]*yaml.Node, 0, len(node.Content))
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if canon, ok := configAliases[key.Value]; ok {
				if present[canon] {
					continue
				}
				key.Value = canon
			}
			content = append(content, key, val)
		}
		node.Content = content
	}

	type plain Config
	return node.Decode((*plain)(c))
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a YAML configuration.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseConfigString decodes a query-string configuration such as
// "driver=sqlite&database=app.db&lazy=1". Unknown keys become driver
// parameters.
func ParseConfigString(s string) (Config, error) {
	values, err := url.ParseQuery(s)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	for key, vals := range values {
		if canon, ok := configAliases[key]; ok {
			if values.Has(canon) {
				continue
			}
			key = canon
		}
		v := vals[len(vals)-1]
		switch key {
		case "driver":
			cfg.Driver = v
		case "dialect":
			cfg.Dialect = v
		case "dsn":
			cfg.DSN = v
		case "host":
			cfg.Host = v
		case "port":
			if cfg.Port, err = strconv.Atoi(v); err != nil {
				return Config{}, fmt.Errorf("invalid port %q", v)
			}
		case "database":
			cfg.Database = v
		case "username":
			cfg.Username = v
		case "password":
			cfg.Password = v
		case "ssl_mode":
			cfg.SSLMode = v
		case "table_prefix":
			cfg.TablePrefix = v
		case "lazy":
			cfg.Lazy = v != "" && v != "0" && !strings.EqualFold(v, "false")
		default:
			if cfg.Params == nil {
				cfg.Params = make(map[string]string)
			}
			cfg.Params[key] = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings every provider relies on.
func (c *Config) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("driver is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Pool.MaxOpen < 0 || c.Pool.MaxIdle < 0 {
		return fmt.Errorf("pool sizes must not be negative")
	}
	if c.Dialect != "" {
		if _, err := dialect.Lookup(c.Dialect); err != nil {
			return err
		}
	}
	if c.Retry != nil && c.Retry.Backoff != 0 && c.Retry.Backoff < 1 {
		return fmt.Errorf("retry backoff must be at least 1, got %g", c.Retry.Backoff)
	}
	return nil
}

// ResolveDialect returns the configured dialect, or fallback when none is
// set.
func (c *Config) ResolveDialect(fallback dialect.Dialect) (dialect.Dialect, error) {
	if c.Dialect == "" {
		return fallback, nil
	}
	return dialect.Lookup(c.Dialect)
}
