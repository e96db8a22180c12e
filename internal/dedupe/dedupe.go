// Package dedupe decides which fetched listings are new relative to a
// profile's history and maintains the 24-hour is_new flag.
package dedupe

import (
	"time"

	"github.com/jeffrey/fundawatch/internal/models"
)

const recencyWindow = 24 * time.Hour

// DefaultMaxRetained bounds the listings kept per profile when the
// profile itself does not override it.
const DefaultMaxRetained = 1000

// Result is the outcome of reconciling a profile's current listings
// against a freshly fetched batch.
type Result struct {
	New     []models.Listing
	Current []models.Listing
}

// Reconcile computes (new_listings, updated_current) for one cycle. now
// is a single wall-clock reading shared by every listing's recency
// recomputation. maxRetained <= 0 falls back to DefaultMaxRetained.
func Reconcile(current []models.Listing, fetched []models.Listing, now time.Time, maxRetained int) Result {
	if maxRetained <= 0 {
		maxRetained = DefaultMaxRetained
	}

	existingByKey := make(map[string]int, len(current))
	for i, l := range current {
		existingByKey[l.DedupKey] = i
	}

	var newOnes []models.Listing
	for _, f := range fetched {
		if _, exists := existingByKey[f.DedupKey]; exists {
			continue // existing stored record wins; new fields discarded
		}
		f.IsNew = true
		f.FirstSeenAt = now
		scrapedAt := now
		f.ScrapedAt = &scrapedAt
		newOnes = append(newOnes, f)
		existingByKey[f.DedupKey] = -1 // guards against duplicate hits within fetched
	}

	updated := make([]models.Listing, 0, len(newOnes)+len(current))
	updated = append(updated, newOnes...)
	for _, l := range current {
		updated = append(updated, recomputeRecency(l, now))
	}

	if len(updated) > maxRetained {
		updated = updated[:maxRetained]
	}

	return Result{New: newOnes, Current: updated}
}

func recomputeRecency(l models.Listing, now time.Time) models.Listing {
	if l.FirstSeenAt.IsZero() {
		if l.ScrapedAt != nil {
			l.FirstSeenAt = *l.ScrapedAt
		} else {
			l.FirstSeenAt = now
		}
	}
	l.IsNew = now.Sub(l.FirstSeenAt) < recencyWindow
	return l
}
