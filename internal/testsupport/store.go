package testsupport

import (
	"testing"

	"landing/internal/artifact"
	"landing/internal/config"
	"landing/internal/logging"
	"landing/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustArtifactStore builds an artifact store rooted at the config's artifact dir.
func MustArtifactStore(t testing.TB, cfg *config.Config) *artifact.Store {
	t.Helper()

	store, err := artifact.New(cfg.Paths.ArtifactDir, logging.NewNop())
	if err != nil {
		t.Fatalf("artifact.New: %v", err)
	}
	return store
}
