package prefs

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/talefetch/talefetch/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// stores returns both Store implementations so every test runs against each.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"sqlite": NewSQLiteStore(setupTestDB(t)),
		"memory": NewMemoryStore(),
	}
}

func TestStore_RestrictedOnly(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.RestrictedOnly()
			if err != nil {
				t.Fatalf("RestrictedOnly: %v", err)
			}
			if got {
				t.Error("default should be false")
			}

			if err := store.SetRestrictedOnly(true); err != nil {
				t.Fatalf("SetRestrictedOnly: %v", err)
			}
			got, err = store.RestrictedOnly()
			if err != nil {
				t.Fatalf("RestrictedOnly: %v", err)
			}
			if !got {
				t.Error("expected true after set")
			}
		})
	}
}

func TestStore_NamingPattern(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.NamingPattern()
			if err != nil {
				t.Fatalf("NamingPattern: %v", err)
			}
			if got != NamingAuthor {
				t.Errorf("default = %q, want %q", got, NamingAuthor)
			}

			if err := store.SetNamingPattern(NamingAuthorSeries); err != nil {
				t.Fatalf("SetNamingPattern: %v", err)
			}
			got, _ = store.NamingPattern()
			if got != NamingAuthorSeries {
				t.Errorf("got %q, want %q", got, NamingAuthorSeries)
			}
		})
	}
}

func TestLedger_MarkPausedSetIfAbsent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			created, err := store.MarkPaused("B00ABC")
			if err != nil {
				t.Fatalf("MarkPaused: %v", err)
			}
			if !created {
				t.Error("first MarkPaused should create the entry")
			}

			created, err = store.MarkPaused("B00ABC")
			if err != nil {
				t.Fatalf("MarkPaused: %v", err)
			}
			if created {
				t.Error("second MarkPaused should be a no-op")
			}

			paused, err := store.IsPaused("B00ABC")
			if err != nil {
				t.Fatalf("IsPaused: %v", err)
			}
			if !paused {
				t.Error("expected item in ledger")
			}
		})
	}
}

func TestLedger_ClearPaused(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.MarkPaused("B00ABC"); err != nil {
				t.Fatalf("MarkPaused: %v", err)
			}

			removed, err := store.ClearPaused("B00ABC")
			if err != nil {
				t.Fatalf("ClearPaused: %v", err)
			}
			if !removed {
				t.Error("expected entry to be removed")
			}

			// Clearing again is a no-op, not an error
			removed, err = store.ClearPaused("B00ABC")
			if err != nil {
				t.Fatalf("ClearPaused: %v", err)
			}
			if removed {
				t.Error("second clear should report nothing removed")
			}

			paused, _ := store.IsPaused("B00ABC")
			if paused {
				t.Error("item should no longer be in ledger")
			}
		})
	}
}

func TestLedger_PausedIDs(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"a", "b", "c"} {
				if _, err := store.MarkPaused(id); err != nil {
					t.Fatalf("MarkPaused(%s): %v", id, err)
				}
			}

			ids, err := store.PausedIDs()
			if err != nil {
				t.Fatalf("PausedIDs: %v", err)
			}
			if len(ids) != 3 {
				t.Errorf("expected 3 ids, got %v", ids)
			}
		})
	}
}
