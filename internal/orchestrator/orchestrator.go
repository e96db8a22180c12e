// Package orchestrator wires the URL builder, fetcher, parser, mapper,
// deduper, persistence, and notifier into the single routine a
// scheduled tick executes for one profile.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeffrey/fundawatch/internal/dedupe"
	"github.com/jeffrey/fundawatch/internal/fetcher"
	"github.com/jeffrey/fundawatch/internal/mapper"
	"github.com/jeffrey/fundawatch/internal/models"
	"github.com/jeffrey/fundawatch/internal/notifier"
	"github.com/jeffrey/fundawatch/internal/parser"
	"github.com/jeffrey/fundawatch/internal/store"
	"github.com/jeffrey/fundawatch/internal/urlbuilder"
	"github.com/jeffrey/fundawatch/pkg/clock"
	"github.com/jeffrey/fundawatch/pkg/logger"
)

// Fetcher is the subset of *fetcher.Fetcher the orchestrator depends
// on, so tests can substitute a stub.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (string, error)
}

// Notifier is the subset of *notifier.Notifier the orchestrator
// depends on, so tests can substitute a stub.
type Notifier interface {
	Notify(recipients []string, profileName string, newListings []models.Listing) error
}

// Orchestrator runs one complete scrape cycle for a single profile.
type Orchestrator struct {
	store    *store.Store
	fetcher  Fetcher
	notifier Notifier
	logger   *logger.Logger
	mode     urlbuilder.Mode
	now      func() time.Time
}

// New builds an Orchestrator from its collaborators. Persisted
// timestamps are stamped via clock.Now, the Europe/Amsterdam-zoned
// reading used throughout the document.
func New(st *store.Store, f Fetcher, n Notifier, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:    st,
		fetcher:  f,
		notifier: n,
		logger:   log.WithComponent("orchestrator"),
		mode:     urlbuilder.Modern,
		now:      clock.Now,
	}
}

// Outcome summarises what one cycle did, for callers that report
// telemetry (e.g. the scheduler's status snapshot).
type Outcome struct {
	ProfileID string
	NewCount  int
	Skipped   bool // profile vanished between tick and execution
	Err       error
}

// Run executes one full cycle for profileID: load, build, fetch,
// parse, map, dedupe, persist, notify. It never panics; all failure
// modes are captured in the returned Outcome and in profile telemetry.
func (o *Orchestrator) Run(ctx context.Context, profileID string) Outcome {
	now := o.now()

	doc, err := o.store.Load()
	if err != nil {
		o.logger.WithError(err).Error("loading document")
		return Outcome{ProfileID: profileID, Err: err}
	}

	profile, ok := doc.Profiles[profileID]
	if !ok {
		o.logger.Debugf("profile %s no longer exists, skipping cycle", profileID)
		return Outcome{ProfileID: profileID, Skipped: true}
	}

	target, err := urlbuilder.Build(profile.Filters, urlbuilder.Rent, o.mode)
	if err != nil {
		return o.recordFailure(profileID, now, fmt.Errorf("building url: %w", err))
	}

	html, err := o.fetcher.Fetch(ctx, target)
	if err != nil {
		return o.recordFailure(profileID, now, fmt.Errorf("fetching: %w", err))
	}
	if html == "" {
		return o.recordFailure(profileID, now, errors.New("fetcher returned empty html"))
	}

	raws := parser.Parse(html)
	fetched := mapper.MapAll(raws, now)

	maxRetained := profile.MaxRetained
	if maxRetained <= 0 {
		maxRetained = dedupe.DefaultMaxRetained
	}
	result := dedupe.Reconcile(profile.Listings, fetched, now, maxRetained)

	var mutateErr error
	mutateErr = o.store.Mutate(func(d *models.Document) error {
		p, ok := d.Profiles[profileID]
		if !ok {
			return nil // deleted concurrently; nothing to persist
		}
		p.Listings = result.Current
		p.LastScraped = now
		p.LastNewListingCount = len(result.New)
		p.LastError = ""
		return nil
	})
	if mutateErr != nil {
		o.logger.WithError(mutateErr).Errorf("persisting profile %s", profileID)
		return Outcome{ProfileID: profileID, Err: mutateErr}
	}

	if len(result.New) > 0 && len(profile.Recipients) > 0 {
		if err := o.notifier.Notify(profile.Recipients, profile.Name, result.New); err != nil {
			o.logger.WithError(err).Warnf("notifying profile %s", profileID)
		}
	}

	return Outcome{ProfileID: profileID, NewCount: len(result.New)}
}

// recordFailure writes err onto the profile's last_error field without
// disturbing its listings, then returns a failed Outcome. last_scraped
// is still advanced to now so a failure streak stays distinguishable
// from a dead scheduler.
func (o *Orchestrator) recordFailure(profileID string, now time.Time, err error) Outcome {
	o.logger.WithError(err).Warnf("cycle failed for profile %s", profileID)

	mutateErr := o.store.Mutate(func(d *models.Document) error {
		p, ok := d.Profiles[profileID]
		if !ok {
			return nil
		}
		p.LastError = err.Error()
		p.LastScraped = now
		return nil
	})
	if mutateErr != nil {
		o.logger.WithError(mutateErr).Error("persisting failure telemetry")
	}

	return Outcome{ProfileID: profileID, Err: err}
}
