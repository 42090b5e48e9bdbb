// Package esql is the entry point for opening engines and translating
// templates.
//
//	db, err := esql.Open(ctx, esql.Config{Driver: "sqlite", Database: "app.db"})
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	rows, err := db.Select("id", "name").From("users").Where(esql.Eq("active", true)).FetchAll(ctx)
package esql

import (
	"context"

	"github.com/Konsultn-Engineering/esql/connector"
	"github.com/Konsultn-Engineering/esql/engine"
	"github.com/Konsultn-Engineering/esql/translator"

	_ "github.com/Konsultn-Engineering/esql/providers/postgres"
	_ "github.com/Konsultn-Engineering/esql/providers/sqlite"
)

type (
	Config     = connector.Config
	Engine     = engine.Engine
	Template   = translator.Template
	Pairs      = translator.Pairs
	Cond       = translator.Cond
	Literal    = translator.Literal
	Translator = translator.Translator
)

// Open connects with cfg using one of the bundled providers.
func Open(ctx context.Context, cfg Config, opts ...engine.Option) (*Engine, error) {
	return engine.Open(ctx, cfg, opts...)
}

// OpenFile loads a YAML configuration and connects with it.
func OpenFile(ctx context.Context, path string, opts ...engine.Option) (*Engine, error) {
	cfg, err := connector.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return engine.Open(ctx, cfg, opts...)
}

func SQL(fragment string, args ...any) *Template { return translator.SQL(fragment, args...) }
func P(kv ...any) Pairs                          { return translator.P(kv...) }
func Eq(column string, value any) Cond           { return translator.Eq(column, value) }
func In(column string, value any) Cond           { return translator.In(column, value) }
