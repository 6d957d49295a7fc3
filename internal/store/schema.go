package store

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/park285/wot-clan-bot/internal/sqlbuild"
)

//go:embed schema/*.sql
var schemaFiles embed.FS

// EnsureSchema creates missing tables. There is no versioning; statements are idempotent.
func (d *DB) EnsureSchema(ctx context.Context) error {
	name := "schema/mysql.sql"
	if d.dialect == sqlbuild.Postgres {
		name = "schema/postgres.sql"
	}
	raw, err := schemaFiles.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func splitStatements(src string) []string {
	var out []string
	for _, part := range strings.Split(src, ";") {
		var lines []string
		for _, l := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(l), "--") {
				continue
			}
			lines = append(lines, l)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
