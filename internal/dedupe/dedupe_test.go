package dedupe

import (
	"testing"
	"time"

	"github.com/jeffrey/fundawatch/internal/models"
)

func listing(key string) models.Listing {
	return models.Listing{DedupKey: key, URL: key}
}

func TestReconcile_FirstObservation(t *testing.T) {
	now := time.Now()
	fetched := []models.Listing{listing("u1"), listing("u2"), listing("u3")}

	result := Reconcile(nil, fetched, now, 0)

	if len(result.New) != 3 {
		t.Fatalf("expected 3 new listings, got %d", len(result.New))
	}
	if len(result.Current) != 3 {
		t.Fatalf("expected 3 current listings, got %d", len(result.Current))
	}
	for _, l := range result.Current {
		if !l.IsNew {
			t.Errorf("listing %s should be is_new on first observation", l.DedupKey)
		}
	}
}

func TestReconcile_SteadyState(t *testing.T) {
	now := time.Now()
	current := []models.Listing{listing("u1"), listing("u2"), listing("u3")}
	for i := range current {
		current[i].FirstSeenAt = now.Add(-time.Hour)
		current[i].IsNew = true
	}
	fetched := []models.Listing{listing("u1"), listing("u2"), listing("u3")}

	result := Reconcile(current, fetched, now, 0)

	if len(result.New) != 0 {
		t.Fatalf("expected 0 new listings in steady state, got %d", len(result.New))
	}
	if len(result.Current) != 3 {
		t.Fatalf("expected 3 current listings, got %d", len(result.Current))
	}
}

func TestReconcile_Aging(t *testing.T) {
	now := time.Now()
	current := []models.Listing{listing("u1")}
	current[0].FirstSeenAt = now.Add(-25 * time.Hour)
	current[0].IsNew = true

	result := Reconcile(current, []models.Listing{listing("u1")}, now, 0)

	if result.Current[0].IsNew {
		t.Error("listing older than 24h should no longer be is_new")
	}
}

func TestReconcile_MixedBatch(t *testing.T) {
	now := time.Now()
	current := []models.Listing{listing("u1"), listing("u2")}
	for i := range current {
		current[i].FirstSeenAt = now.Add(-time.Hour)
	}
	fetched := []models.Listing{listing("u2"), listing("u3"), listing("u4")}

	result := Reconcile(current, fetched, now, 0)

	if len(result.Current) != 4 {
		t.Fatalf("expected 4 current listings, got %d", len(result.Current))
	}
	newKeys := map[string]bool{}
	for _, l := range result.New {
		newKeys[l.DedupKey] = true
	}
	if len(newKeys) != 2 || !newKeys["u3"] || !newKeys["u4"] {
		t.Errorf("expected exactly u3 and u4 to be new, got %+v", newKeys)
	}
}

func TestReconcile_ExistingRecordWinsOnCollision(t *testing.T) {
	now := time.Now()
	existing := listing("u1")
	existing.Price = intPtr(1000)
	existing.FirstSeenAt = now.Add(-time.Hour)

	incoming := listing("u1")
	incoming.Price = intPtr(2000)

	result := Reconcile([]models.Listing{existing}, []models.Listing{incoming}, now, 0)

	if len(result.New) != 0 {
		t.Fatalf("expected no new listings, got %d", len(result.New))
	}
	if *result.Current[0].Price != 1000 {
		t.Errorf("expected existing record's price to win, got %d", *result.Current[0].Price)
	}
}

func TestReconcile_TruncatesTailWhenOverMaxRetained(t *testing.T) {
	now := time.Now()
	current := []models.Listing{listing("u1"), listing("u2")}
	fetched := []models.Listing{listing("u1"), listing("u2"), listing("u3")}

	result := Reconcile(current, fetched, now, 2)

	if len(result.Current) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(result.Current))
	}
	// New listings are prepended, so the truncated slice keeps the new one.
	if result.Current[0].DedupKey != "u3" {
		t.Errorf("expected new listing u3 to be kept first, got %s", result.Current[0].DedupKey)
	}
}

func intPtr(n int) *int { return &n }
