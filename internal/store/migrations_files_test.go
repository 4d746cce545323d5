package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testMigrationsDir = "../../db/migrations"

func TestEveryUpMigrationHasADown(t *testing.T) {
	ups, err := upMigrations(testMigrationsDir)
	if err != nil {
		t.Fatalf("upMigrations() error = %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("no migrations discovered")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up.path, ".up.sql") + ".down.sql"
		if _, err := os.Stat(down); err != nil {
			t.Fatalf("%s has no down file: %v", up.version, err)
		}
	}
}

func TestMigrationsDefineRecordsSchema(t *testing.T) {
	ups, err := upMigrations(testMigrationsDir)
	if err != nil {
		t.Fatalf("upMigrations() error = %v", err)
	}

	var all strings.Builder
	for _, up := range ups {
		contents, err := os.ReadFile(up.path)
		if err != nil {
			t.Fatalf("read %s: %v", filepath.Base(up.path), err)
		}
		all.Write(contents)
	}
	schema := strings.ToLower(all.String())

	for _, want := range []string{
		"create table if not exists records",
		"primary key (collection, id)",
		"data jsonb",
		"add column if not exists fts tsvector",
		"using gin (fts)",
	} {
		if !strings.Contains(schema, want) {
			t.Fatalf("migrations missing %q", want)
		}
	}
}
