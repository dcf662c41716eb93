// Package testutil provides shared test helpers for setting up stores and services.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ellsworth/fable/internal/docservice"
	"github.com/ellsworth/fable/internal/refindex"
	"github.com/ellsworth/fable/internal/store"
)

// TestStore creates a temporary SQLite store that is automatically cleaned up.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "fable-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	st, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestService creates a document service over a temporary store. Automatic
// snapshots are taken at the given interval; 0 disables them.
func TestService(t *testing.T, snapshotEvery time.Duration) (*docservice.Service, *store.Store) {
	t.Helper()
	st := TestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ix := refindex.New(st, logger)
	return docservice.NewService(st, ix, logger, snapshotEvery), st
}
