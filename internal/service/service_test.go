package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/habitstack/internal/db"
)

func setupServiceStore(t *testing.T) *db.Store {
	t.Helper()

	store, err := db.Open(db.Options{URL: "sqlite://:memory:", Name: "service-test-" + uuid.NewString(), Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
