package connector

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// DSNBuilder provides a fluent interface for building database connection strings
type DSNBuilder struct {
	scheme   string
	username string
	password string
	host     string
	port     int
	database string
	path     string
	params   map[string]string
}

// NewDSNBuilder creates a new DSN builder
func NewDSNBuilder(scheme string) *DSNBuilder {
	return &DSNBuilder{
		scheme: scheme,
		params: make(map[string]string),
	}
}

// Auth sets username and password
func (b *DSNBuilder) Auth(username, password string) *DSNBuilder {
	b.username = username
	b.password = password
	return b
}

// Host sets the host and port
func (b *DSNBuilder) Host(host string, port int) *DSNBuilder {
	b.host = host
	b.port = port
	return b
}

// Database sets the database name
func (b *DSNBuilder) Database(name string) *DSNBuilder {
	b.database = name
	return b
}

// Param adds a single parameter
func (b *DSNBuilder) Param(key, value string) *DSNBuilder {
	if value != "" {
		b.params[key] = value
	}
	return b
}

// Params adds multiple parameters
func (b *DSNBuilder) Params(params map[string]string) *DSNBuilder {
	for k, v := range params {
		if v != "" {
			b.params[k] = v
		}
	}
	return b
}

// File switches the builder to a file DSN such as "file:app.db?mode=ro".
// Host, port and credentials are ignored.
func (b *DSNBuilder) File(path string) *DSNBuilder {
	b.path = path
	return b
}

// Add defaults for common parameters
func (b *DSNBuilder) WithPostgresDefaults() *DSNBuilder {
	return b.Param("sslmode", "prefer").
		Param("connect_timeout", "10")
}

func (b *DSNBuilder) Validate() error {
	if b.path != "" {
		return nil
	}
	if b.host == "" {
		return fmt.Errorf("host is required")
	}
	if b.port <= 0 || b.port > 65535 {
		return fmt.Errorf("invalid port: %d", b.port)
	}
	return nil
}

// Build constructs the final DSN string. Parameters are written in key
// order so equal configurations yield equal DSNs.
func (b *DSNBuilder) Build() string {
	var dsn strings.Builder

	if b.path != "" {
		dsn.WriteString(b.scheme)
		dsn.WriteString(":")
		dsn.WriteString(b.path)
		b.writeParams(&dsn)
		return dsn.String()
	}

	// Scheme
	dsn.WriteString(b.scheme)
	dsn.WriteString("://")

	// Authentication
	if b.username != "" {
		dsn.WriteString(url.QueryEscape(b.username))
		if b.password != "" {
			dsn.WriteString(":")
			dsn.WriteString(url.QueryEscape(b.password))
		}
		dsn.WriteString("@")
	}

	// Host and port
	dsn.WriteString(b.host)
	if b.port > 0 {
		dsn.WriteString(":")
		dsn.WriteString(strconv.Itoa(b.port))
	}

	// Database
	if b.database != "" {
		dsn.WriteString("/")
		dsn.WriteString(url.PathEscape(b.database))
	}

	b.writeParams(&dsn)
	return dsn.String()
}

func (b *DSNBuilder) writeParams(dsn *strings.Builder) {
	if len(b.params) == 0 {
		return
	}
	dsn.WriteString("?")
	for i, key := range slices.Sorted(maps.Keys(b.params)) {
		if i > 0 {
			dsn.WriteString("&")
		}
		dsn.WriteString(url.QueryEscape(key))
		dsn.WriteString("=")
		dsn.WriteString(url.QueryEscape(b.params[key]))
	}
}
