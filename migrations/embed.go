// Package migrations embeds the ledger schema and applies it.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
)

// FS holds every *.sql file.
//
//go:embed *.sql
var FS embed.FS

// Execer runs a script; *pgxpool.Pool and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Files lists the embedded scripts in apply order.
func Files() ([]string, error) {
	names, err := fs.Glob(FS, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply runs every script in order. Scripts are idempotent, so Apply may run
// on every deploy.
func Apply(ctx context.Context, db Execer) ([]string, error) {
	names, err := Files()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		script, err := FS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("migrations: read %s: %w", name, err)
		}
		if _, err := db.Exec(ctx, string(script)); err != nil {
			return nil, fmt.Errorf("migrations: apply %s: %w", name, err)
		}
	}
	return names, nil
}
