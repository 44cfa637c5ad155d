package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store/storetest"
)

func makeSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "purgebot.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return NewWithDB(db)
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeSQLiteStore)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "x", "nested.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	defer func() { _ = db.Close() }()
	for i := 0; i < 2; i++ {
		if err := EnsureSchema(context.Background(), db); err != nil {
			t.Fatalf("schema pass %d: %v", i, err)
		}
	}
}
