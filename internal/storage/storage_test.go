package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testDB creates a migrated database in a temp dir for testing
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// =============================================================================
// DB Tests
// =============================================================================

func TestDB_Open_InMemory(t *testing.T) {
	db, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if db.Driver() != DriverModernc {
		t.Errorf("Driver() = %q, want %q", db.Driver(), DriverModernc)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
}

func TestDB_Open_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestDB_Open_UnknownDriver(t *testing.T) {
	if _, err := Open(Config{InMemory: true, Driver: "postgres"}); err == nil {
		t.Error("Open() with unknown driver should fail")
	}
}

func TestDB_Open_CgoDriver(t *testing.T) {
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "cgo.db"), Driver: DriverCgo})
	if err != nil {
		t.Skipf("sqlite3 driver unavailable in this build: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	c := NewCollections(db)
	if err := c.SaveCollection(ctx, "k", []byte(`[]`)); err != nil {
		t.Fatalf("SaveCollection() error = %v", err)
	}
}

func TestDB_Migrate_Idempotent(t *testing.T) {
	db := testDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var count int
	if err := db.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	want, err := availableMigrations()
	if err != nil {
		t.Fatalf("availableMigrations() error = %v", err)
	}
	if count != len(want) {
		t.Errorf("applied %d migrations, want %d", count, len(want))
	}
}

// =============================================================================
// Backend Tests
// =============================================================================

func backends(t *testing.T) map[string]Backend {
	files, err := NewFiles(filepath.Join(t.TempDir(), "collections"))
	if err != nil {
		t.Fatalf("NewFiles() error = %v", err)
	}
	return map[string]Backend{
		"sqlite": NewCollections(testDB(t)),
		"memory": NewMemory(),
		"files":  files,
	}
}

func TestBackend_MissingKey(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			doc, err := b.LoadCollection(context.Background(), "lifectx/tasks")
			if err != nil {
				t.Fatalf("LoadCollection() error = %v", err)
			}
			if doc != nil {
				t.Errorf("LoadCollection() = %q, want nil", doc)
			}
		})
	}
}

func TestBackend_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.SaveCollection(ctx, "lifectx/tasks", []byte(`[{"id":"1"}]`)); err != nil {
				t.Fatalf("SaveCollection() error = %v", err)
			}
			if err := b.SaveCollection(ctx, "lifectx/tasks", []byte(`[]`)); err != nil {
				t.Fatalf("SaveCollection() error = %v", err)
			}
			if err := b.SaveCollection(ctx, "lifectx/events", []byte(`[{"id":"e"}]`)); err != nil {
				t.Fatalf("SaveCollection() error = %v", err)
			}

			doc, err := b.LoadCollection(ctx, "lifectx/tasks")
			if err != nil {
				t.Fatalf("LoadCollection() error = %v", err)
			}
			if diff := cmp.Diff(`[]`, string(doc)); diff != "" {
				t.Errorf("tasks doc mismatch (-want +got):\n%s", diff)
			}
			doc, _ = b.LoadCollection(ctx, "lifectx/events")
			if diff := cmp.Diff(`[{"id":"e"}]`, string(doc)); diff != "" {
				t.Errorf("events doc mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemory_CopiesDocuments(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	doc := []byte(`[1]`)

	if err := m.SaveCollection(ctx, "k", doc); err != nil {
		t.Fatalf("SaveCollection() error = %v", err)
	}
	doc[1] = '2'

	got, _ := m.LoadCollection(ctx, "k")
	if string(got) != `[1]` {
		t.Errorf("stored doc changed through caller slice: %q", got)
	}
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory()
	if err := m.SaveCollection(ctx, "k", []byte(`[]`)); err == nil {
		t.Error("SaveCollection() with cancelled context should fail")
	}
	if _, err := m.LoadCollection(ctx, "k"); err == nil {
		t.Error("LoadCollection() with cancelled context should fail")
	}
}

// =============================================================================
// Files Backend Tests
// =============================================================================

func TestFiles_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := NewFiles(dir)
	if err != nil {
		t.Fatalf("NewFiles() error = %v", err)
	}

	if err := f.SaveCollection(ctx, "lifectx/tasks", []byte(`[]`)); err != nil {
		t.Fatalf("SaveCollection() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "lifectx", "tasks.json"))
	if err != nil {
		t.Fatalf("collection file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}

	// A second backend over the same directory sees the document
	again, _ := NewFiles(dir)
	doc, err := again.LoadCollection(ctx, "lifectx/tasks")
	if err != nil || string(doc) != `[]` {
		t.Errorf("LoadCollection() = %q, %v", doc, err)
	}
}

func TestFiles_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	f, _ := NewFiles(t.TempDir())

	for _, key := range []string{"", "../outside", "lifectx//tasks", "lifectx/./tasks"} {
		if err := f.SaveCollection(ctx, key, []byte(`[]`)); err == nil {
			t.Errorf("SaveCollection(%q) should fail", key)
		}
		if _, err := f.LoadCollection(ctx, key); err == nil {
			t.Errorf("LoadCollection(%q) should fail", key)
		}
	}
}
