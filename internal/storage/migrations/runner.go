package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// execFunc applies one script or statement.
type execFunc func(ctx context.Context, sql string) error

// migration is one embedded SQL file.
type migration struct {
	name string
	sql  string
}

// load reads the .sql files under dir in apply order (001_, 002_, ...).
// Blank files are skipped.
func load(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, migration{name: name, sql: string(data)})
	}
	return out, nil
}

// apply runs each migration through exec. With perStatement, scripts are
// split for drivers that take one statement per call.
func apply(ctx context.Context, ms []migration, perStatement bool, exec execFunc) error {
	for _, m := range ms {
		stmts := []string{m.sql}
		if perStatement {
			stmts = statements(m.sql)
		}
		for _, stmt := range stmts {
			if err := exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
	}
	return nil
}

// statements splits script on semicolons outside single-quoted literals.
// -- comments are dropped, so semicolons inside them are ignored too.
func statements(script string) []string {
	var (
		out   []string
		cur   strings.Builder
		inStr bool
	)
	emit := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(script); i++ {
		ch := script[i]
		switch {
		case inStr:
			cur.WriteByte(ch)
			if ch == '\'' {
				if i+1 < len(script) && script[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
				} else {
					inStr = false
				}
			}
		case ch == '\'':
			inStr = true
			cur.WriteByte(ch)
		case ch == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case ch == ';':
			emit()
		default:
			cur.WriteByte(ch)
		}
	}
	emit()
	return out
}
