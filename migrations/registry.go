// Package migrations exposes the embedded verify schema and hands it to a
// persistence client for the dialect in use.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	verify "github.com/goliatone/go-verify"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	// SourceLabel identifies the verify schema in migration bookkeeping.
	SourceLabel = "go-verify"

	schemaRoot = "data/sql/migrations"
)

// Source is one dialect's rendering of the verify schema.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// RegisterFunc receives one dialect source, typically forwarding its
// filesystem to persistence.Client.RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, source Source) error

// Sources returns the embedded verify schema for every supported dialect.
// The postgres rendering lives at the schema root, the sqlite rendering
// under sqlite/. Every returned source is verified to carry at least one
// *.up.sql file.
func Sources() ([]Source, error) {
	root, err := fs.Sub(verify.GetMigrationsFS(), schemaRoot)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", schemaRoot, err)
	}
	sqliteFS, err := fs.Sub(root, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite schema: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: schemaRoot, FS: root},
		{Dialect: DialectSQLite, Path: schemaRoot + "/sqlite", FS: sqliteFS},
	}
	for _, source := range sources {
		matches, globErr := fs.Glob(source.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, globErr)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s schema %q has no *.up.sql files", source.Dialect, source.Path)
		}
	}
	return sources, nil
}

// ForDialect returns the embedded schema for one dialect.
func ForDialect(dialect string) (Source, error) {
	dialect = strings.TrimSpace(strings.ToLower(dialect))
	sources, err := Sources()
	if err != nil {
		return Source{}, err
	}
	for _, source := range sources {
		if source.Dialect == dialect {
			return source, nil
		}
	}
	return Source{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// Register hands the schema for the requested dialects to registerFn. With
// no dialects given, every supported dialect is registered.
func Register(ctx context.Context, registerFn RegisterFunc, dialects ...string) error {
	if registerFn == nil {
		return fmt.Errorf("migrations: register function is required")
	}
	if len(dialects) == 0 {
		dialects = []string{DialectPostgres, DialectSQLite}
	}
	for _, dialect := range dialects {
		source, err := ForDialect(dialect)
		if err != nil {
			return err
		}
		if err := registerFn(ctx, source); err != nil {
			return fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
	}
	return nil
}
