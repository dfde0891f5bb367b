package migrations

import (
	"context"
	"errors"
	"io/fs"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
)

func TestEmbeddedMigrationsPresent(t *testing.T) {
	for _, tc := range []struct {
		fsys fs.FS
		dir  string
	}{
		{PostgresFS, "postgres"},
		{ClickhouseFS, "clickhouse"},
		{SQLiteFS, "sqlite"},
	} {
		ms, err := load(tc.fsys, tc.dir)
		if err != nil {
			t.Fatalf("%s: %v", tc.dir, err)
		}
		if len(ms) == 0 {
			t.Errorf("%s: no migrations embedded", tc.dir)
		}
	}
}

func TestLoadOrdersAndSkipsBlank(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.sql":  {Data: []byte("SELECT 2;")},
		"m/001_a.sql":  {Data: []byte("SELECT 1;")},
		"m/003_c.sql":  {Data: []byte("  \n")},
		"m/README.txt": {Data: []byte("not sql")},
	}
	ms, err := load(fsys, "m")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, m := range ms {
		names = append(names, m.name)
	}
	if want := []string{"001_a.sql", "002_b.sql"}; !reflect.DeepEqual(names, want) {
		t.Errorf("got %v, want %v", names, want)
	}
}

func TestClickhouseSchemaStatements(t *testing.T) {
	ms, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		t.Fatal(err)
	}
	stmts := statements(ms[0].sql)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS") {
			t.Errorf("unexpected statement start: %.40q", s)
		}
	}
}

func TestStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{"plain", "SELECT 1; SELECT 2;", []string{"SELECT 1", "SELECT 2"}},
		{"no trailing semicolon", "SELECT 1", []string{"SELECT 1"}},
		{"semicolon in literal", "SELECT 'a;b'; SELECT 1;", []string{"SELECT 'a;b'", "SELECT 1"}},
		{"escaped quote", "SELECT 'it''s;'; SELECT 2", []string{"SELECT 'it''s;'", "SELECT 2"}},
		{"comment dropped", "-- setup; ignore\nSELECT 1; -- trailing;\n", []string{"SELECT 1"}},
		{"empty", " ;\n; ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := statements(tt.script)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	ms := []migration{
		{name: "001_a.sql", sql: "CREATE TABLE a (x Int8); CREATE TABLE b (y Int8);"},
		{name: "002_c.sql", sql: "CREATE TABLE c (z Int8);"},
	}

	var got []string
	record := func(_ context.Context, sql string) error {
		got = append(got, sql)
		return nil
	}
	if err := apply(context.Background(), ms, true, record); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("per statement: got %d calls, want 3", len(got))
	}

	got = nil
	if err := apply(context.Background(), ms, false, record); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("whole script: got %d calls, want 2", len(got))
	}

	boom := errors.New("boom")
	err := apply(context.Background(), ms, true, func(_ context.Context, sql string) error {
		if strings.Contains(sql, "TABLE c") {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "002_c.sql") {
		t.Errorf("expected wrapped error naming the file, got %v", err)
	}
}

func TestClickhouseDatabase(t *testing.T) {
	db, err := clickhouseDatabase("clickhouse://default@localhost:9000/copytrader")
	if err != nil || db != "copytrader" {
		t.Errorf("got %q, %v", db, err)
	}
	if _, err := clickhouseDatabase("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for missing database")
	}
}
