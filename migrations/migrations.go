// Package migrations holds the SurrealQL schema. Files are applied in name
// order and every statement is idempotent, so Apply is safe on each start.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
)

//go:embed *.surql
var files embed.FS

// Executor runs a SurrealQL script
type Executor interface {
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}

// Migration is one schema file
type Migration struct {
	Name  string
	Query string
}

// All returns the migrations in the order they are applied
func All() ([]Migration, error) {
	names, err := fs.Glob(files, "*.surql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		migrations = append(migrations, Migration{
			Name:  strings.TrimSuffix(name, ".surql"),
			Query: string(content),
		})
	}
	return migrations, nil
}

// Apply runs every migration against db
func Apply(ctx context.Context, db Executor) error {
	migrations, err := All()
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if err := db.Execute(ctx, m.Query, nil); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}
	log.Printf("Applied %d migrations", len(migrations))
	return nil
}
