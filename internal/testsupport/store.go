package testsupport

import (
	"context"
	"testing"

	"karaoke/internal/config"
	"karaoke/internal/runstore"
)

// MustOpenStore opens a runstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun opens a running journal entry for tests.
func BeginRun(t testing.TB, store *runstore.Store, itemID, workflow string) *runstore.Run {
	t.Helper()

	run, err := store.Begin(context.Background(), itemID, "", workflow)
	if err != nil {
		t.Fatalf("store.Begin: %v", err)
	}
	return run
}
