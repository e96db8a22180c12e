package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeffrey/fundawatch/internal/models"
	"github.com/jeffrey/fundawatch/internal/store"
	"github.com/jeffrey/fundawatch/pkg/logger"
)

type stubFetcher struct {
	html string
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, target string) (string, error) {
	return f.html, f.err
}

type recordingNotifier struct {
	calls     int
	lastCount int
}

func (n *recordingNotifier) Notify(recipients []string, profileName string, newListings []models.Listing) error {
	n.calls++
	n.lastCount = len(newListings)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(filepath.Join(t.TempDir(), "db.json"), testLogger())
}

const fixtureHTML = `<html><body>
<div class="some-unrelated-wrapper">
  <a href="/detail/huur/leiden/appartement-1/">A</a>
  <a href="/detail/huur/leiden/appartement-2/">B</a>
  <a href="/detail/huur/leiden/appartement-3/">C</a>
</div>
</body></html>`

func TestRun_FirstObservation(t *testing.T) {
	st := newTestStore(t)
	err := st.Mutate(func(d *models.Document) error {
		d.Profiles["p1"] = &models.SearchProfile{
			ID:         "p1",
			Name:       "leiden rentals",
			Recipients: []string{"x@y.com"},
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seeding store failed: %v", err)
	}

	f := &stubFetcher{html: fixtureHTML}
	n := &recordingNotifier{}
	o := New(st, f, n, testLogger())

	outcome := o.Run(context.Background(), "p1")
	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if outcome.NewCount != 3 {
		t.Errorf("expected 3 new listings, got %d", outcome.NewCount)
	}
	if n.calls != 1 || n.lastCount != 3 {
		t.Errorf("expected notifier invoked once with 3 listings, got calls=%d lastCount=%d", n.calls, n.lastCount)
	}

	doc, _ := st.Load()
	if len(doc.Profiles["p1"].Listings) != 3 {
		t.Errorf("expected profile to have 3 persisted listings, got %d", len(doc.Profiles["p1"].Listings))
	}
}

func TestRun_SteadyStateSkipsNotifier(t *testing.T) {
	st := newTestStore(t)
	st.Mutate(func(d *models.Document) error {
		d.Profiles["p1"] = &models.SearchProfile{ID: "p1", Name: "p", Recipients: []string{"x@y.com"}}
		return nil
	})

	f := &stubFetcher{html: fixtureHTML}
	n := &recordingNotifier{}
	o := New(st, f, n, testLogger())

	o.Run(context.Background(), "p1")
	n.calls = 0 // reset after first (seeding) cycle

	outcome := o.Run(context.Background(), "p1")
	if outcome.NewCount != 0 {
		t.Errorf("expected 0 new listings on steady state, got %d", outcome.NewCount)
	}
	if n.calls != 0 {
		t.Errorf("expected notifier not called on steady state, got %d calls", n.calls)
	}
}

func TestRun_SkipsDeletedProfile(t *testing.T) {
	st := newTestStore(t)
	f := &stubFetcher{html: fixtureHTML}
	n := &recordingNotifier{}
	o := New(st, f, n, testLogger())

	outcome := o.Run(context.Background(), "ghost")
	if !outcome.Skipped {
		t.Error("expected Skipped for a profile missing from the document")
	}
}

func TestRun_FetchFailureRecordsLastError(t *testing.T) {
	st := newTestStore(t)
	st.Mutate(func(d *models.Document) error {
		d.Profiles["p1"] = &models.SearchProfile{ID: "p1", Name: "p"}
		return nil
	})

	f := &stubFetcher{err: errors.New("boom")}
	n := &recordingNotifier{}
	o := New(st, f, n, testLogger())
	fixedNow := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return fixedNow }

	outcome := o.Run(context.Background(), "p1")
	if outcome.Err == nil {
		t.Fatal("expected an error outcome")
	}

	doc, _ := st.Load()
	if doc.Profiles["p1"].LastError == "" {
		t.Error("expected last_error to be populated on the profile")
	}
	if len(doc.Profiles["p1"].Listings) != 0 {
		t.Error("failed fetch must not disturb existing listings")
	}
	if !doc.Profiles["p1"].LastScraped.Equal(fixedNow) {
		t.Errorf("expected last_scraped to advance to %v even on failure, got %v", fixedNow, doc.Profiles["p1"].LastScraped)
	}
}

func TestRun_FailureIsolationAcrossProfiles(t *testing.T) {
	st := newTestStore(t)
	st.Mutate(func(d *models.Document) error {
		d.Profiles["a"] = &models.SearchProfile{ID: "a", Name: "a"}
		d.Profiles["b"] = &models.SearchProfile{ID: "b", Name: "b", Recipients: []string{"x@y.com"}}
		return nil
	})

	failFetcher := &stubFetcher{err: errors.New("boom")}
	n := &recordingNotifier{}
	oa := New(st, failFetcher, n, testLogger())
	oa.Run(context.Background(), "a")

	okFetcher := &stubFetcher{html: fixtureHTML}
	ob := New(st, okFetcher, n, testLogger())
	outcomeB := ob.Run(context.Background(), "b")

	if outcomeB.Err != nil {
		t.Fatalf("profile b should succeed independently of a's failure: %v", outcomeB.Err)
	}

	doc, _ := st.Load()
	if doc.Profiles["a"].LastError == "" {
		t.Error("profile a should have recorded its error")
	}
	if doc.Profiles["b"].LastError != "" {
		t.Error("profile b should be unaffected by a's failure")
	}
}
