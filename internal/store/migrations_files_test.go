package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	for _, dialect := range []Dialect{DialectPostgres, DialectSQLite} {
		t.Run(string(dialect), func(t *testing.T) {
			migrationsDir := MigrationsPath(filepath.Join("..", "..", "db", "migrations"), dialect)
			entries, err := os.ReadDir(migrationsDir)
			if err != nil {
				t.Fatalf("read migrations dir: %v", err)
			}

			pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
			byVersion := map[string]map[string]bool{}

			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				match := pattern.FindStringSubmatch(entry.Name())
				if match == nil {
					continue
				}
				version := match[1]
				direction := match[2]
				if byVersion[version] == nil {
					byVersion[version] = map[string]bool{}
				}
				if byVersion[version][direction] {
					t.Fatalf("duplicate %s migration file for version %s", direction, version)
				}
				byVersion[version][direction] = true
			}

			if len(byVersion) == 0 {
				t.Fatal("no migrations discovered")
			}

			for version, dirs := range byVersion {
				if !dirs["up"] || !dirs["down"] {
					t.Fatalf("version %s must include both up and down files", version)
				}
			}
		})
	}
}

func TestDialectsShipTheSameMigrationVersions(t *testing.T) {
	root := filepath.Join("..", "..", "db", "migrations")
	names := func(dialect Dialect) []string {
		entries, err := os.ReadDir(MigrationsPath(root, dialect))
		if err != nil {
			t.Fatalf("read %s migrations: %v", dialect, err)
		}
		var out []string
		for _, entry := range entries {
			out = append(out, entry.Name())
		}
		return out
	}

	postgres := strings.Join(names(DialectPostgres), ",")
	sqlite := strings.Join(names(DialectSQLite), ",")
	if postgres != sqlite {
		t.Fatalf("migration sets differ:\npostgres: %s\nsqlite:   %s", postgres, sqlite)
	}
}

func TestTodosMigrationScopesByOwner(t *testing.T) {
	for _, dialect := range []Dialect{DialectPostgres, DialectSQLite} {
		path := filepath.Join(MigrationsPath(filepath.Join("..", "..", "db", "migrations"), dialect), "0002_todos.up.sql")
		sqlBytes, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read migration: %v", err)
		}
		sqlText := string(sqlBytes)
		for _, snippet := range []string{"user_id TEXT NOT NULL REFERENCES users(id)", "CHECK (title <> '')", "idx_todos_user_created"} {
			if !strings.Contains(sqlText, snippet) {
				t.Fatalf("%s: expected migration to contain %q", dialect, snippet)
			}
		}
	}
}
