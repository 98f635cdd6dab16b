package testsupport

import (
	"testing"

	"mediadedup/internal/config"
	"mediadedup/internal/store"
)

// MustOpenStore opens a store for the provided config and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
