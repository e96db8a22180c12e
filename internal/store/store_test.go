package store

import (
	"path/filepath"
	"testing"

	"github.com/jeffrey/fundawatch/internal/models"
	"github.com/jeffrey/fundawatch/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func TestLoad_MissingFileReturnsEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	s := New(path, testLogger())

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Users) != 0 || len(doc.Profiles) != 0 {
		t.Error("expected an empty document for a missing file")
	}
}

func TestStoreThenLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := New(path, testLogger())

	doc := models.NewDocument()
	doc.Profiles["p1"] = &models.SearchProfile{ID: "p1", Name: "leiden rentals"}

	if err := s.Store(doc); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	reloaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.Profiles["p1"] == nil || reloaded.Profiles["p1"].Name != "leiden rentals" {
		t.Errorf("round-tripped document missing expected profile: %+v", reloaded.Profiles)
	}
}

func TestStore_LeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	s := New(path, testLogger())

	if err := s.Store(models.NewDocument()); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	entries, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no leftover temp files, found %v", entries)
	}
}

func TestStoreThenLoad_RoundTripsMintedEntities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := New(path, testLogger())

	user := models.NewUser("A. User", "a@example.com", "hash")
	profile := models.NewSearchProfile(user.ID, "leiden rentals", models.FilterSet{City: "leiden"}, []string{"a@example.com"}, models.Interval{Minutes: 30})
	user.ProfileIDs = append(user.ProfileIDs, profile.ID)

	doc := models.NewDocument()
	doc.Users[user.ID] = user
	doc.Profiles[profile.ID] = profile

	if err := s.Store(doc); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	reloaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.Profiles[profile.ID] == nil {
		t.Fatalf("round-tripped document missing profile %s", profile.ID)
	}
	if reloaded.Users[user.ID] == nil || len(reloaded.Users[user.ID].ProfileIDs) != 1 {
		t.Errorf("round-tripped user missing its profile reference: %+v", reloaded.Users[user.ID])
	}
	if reloaded.Profiles[profile.ID].UserID != user.ID {
		t.Errorf("profile.UserID = %q, want %q", reloaded.Profiles[profile.ID].UserID, user.ID)
	}
}

func TestMutate_AppliesUnderLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := New(path, testLogger())

	err := s.Mutate(func(d *models.Document) error {
		d.Profiles["p1"] = &models.SearchProfile{ID: "p1"}
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Profiles["p1"] == nil {
		t.Error("expected mutation to be persisted")
	}
}
