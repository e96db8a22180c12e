// Package scheduler owns one recurring job per live search profile: it
// staggers first fires, enforces a bounded concurrency pool, coalesces
// misfires, and periodically reconciles its job table against the
// persisted profile set.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/sourcegraph/conc"

	"github.com/jeffrey/fundawatch/internal/models"
	"github.com/jeffrey/fundawatch/internal/orchestrator"
	"github.com/jeffrey/fundawatch/internal/store"
	"github.com/jeffrey/fundawatch/pkg/config"
	"github.com/jeffrey/fundawatch/pkg/logger"
)

const (
	misfireGrace      = time.Hour
	cycleBudget       = 10 * time.Minute
	cycleCleanupGrace = 30 * time.Second
	tickResolution    = time.Second
	sentinelProfileID = "__sentinel__"
	sentinelDelay     = 10 * time.Second
)

// Runner executes one scrape cycle for a profile. *orchestrator.Orchestrator
// satisfies this; tests may substitute a stub.
type Runner interface {
	Run(ctx context.Context, profileID string) orchestrator.Outcome
}

// Scheduler dispatches per-profile scrape cycles on their configured
// cadence, bounded by a fixed-size worker pool.
type Scheduler struct {
	store       *store.Store
	runner      Runner
	logger      *logger.Logger
	cfg         *config.Config
	constrained bool

	mu   sync.Mutex
	jobs registry

	sem      chan struct{}
	wg       conc.WaitGroup
	stopCh   chan struct{}
	triggers chan string

	running      atomic.Bool
	jobsExecuted atomic.Int64
	jobsRunning  atomic.Bool // set once the startup sentinel has fired
}

// New builds a Scheduler. constrained selects the resource-constrained
// safety floor and heartbeat cadence from cfg.
func New(cfg *config.Config, st *store.Store, runner Runner, constrained bool, log *logger.Logger) *Scheduler {
	maxConcurrent := cfg.Scheduler.MaxConcurrentCycles
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Scheduler{
		store:       st,
		runner:      runner,
		logger:      log.WithComponent("scheduler"),
		cfg:         cfg,
		constrained: constrained,
		jobs:        make(registry),
		sem:         make(chan struct{}, maxConcurrent),
		stopCh:      make(chan struct{}),
		triggers:    make(chan string, 64),
	}
}

// sanitizeInterval clamps raw to the applicable floor: 60s unconstrained,
// the configured safety floor (default 30m) when constrained.
func (s *Scheduler) sanitizeInterval(raw time.Duration) time.Duration {
	floor := 60 * time.Second
	if sf := s.cfg.SafetyFloor(s.constrained); sf > floor {
		floor = sf
	}
	if raw < floor {
		return floor
	}
	return raw
}

func (s *Scheduler) stagger() time.Duration {
	lo := s.cfg.Scheduler.StaggerMinMinutes
	hi := s.cfg.Scheduler.StaggerMaxMinutes
	if hi <= lo {
		return time.Duration(lo) * time.Minute
	}
	spreadMin := hi - lo
	return time.Duration(lo)*time.Minute + time.Duration(rand.Intn(spreadMin+1))*time.Minute
}

// Start is idempotent: schedules one job per persisted profile with a
// staggered first fire, sanitises stored intervals, installs the
// startup sentinel, and begins dispatching and heartbeat reconciliation.
// The supplied ctx governs the scheduler's entire lifetime.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.running.Load() {
		s.logger.Warn("scheduler already running")
		return nil
	}

	if err := s.sanitizeIntervals(); err != nil {
		return err
	}

	doc, err := s.store.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	now := time.Now()
	for id, p := range doc.Profiles {
		interval := s.sanitizeInterval(time.Duration(p.Interval.TotalMinutes()) * time.Minute)
		s.jobs[id] = &job{profileID: id, interval: interval, nextFire: now.Add(s.stagger())}
	}
	s.jobs[sentinelProfileID] = &job{profileID: sentinelProfileID, interval: 0, nextFire: now.Add(sentinelDelay)}
	s.mu.Unlock()

	s.running.Store(true)
	s.logger.Infof("scheduler starting with %d profile job(s)", len(doc.Profiles))

	s.wg.Go(func() { s.dispatchLoop(ctx) })
	s.wg.Go(func() { s.heartbeatLoop(ctx) })

	return nil
}

// Stop halts dispatch and reconciliation and waits for in-flight cycles
// to settle. In-flight cycles are themselves bounded by the per-cycle
// watchdog budget and cleanup grace, so this returns in bounded time.
func (s *Scheduler) Stop() {
	if !s.running.Load() {
		return
	}
	s.logger.Info("scheduler stopping")
	close(s.stopCh)
	s.wg.Wait()
	s.running.Store(false)
	s.logger.Info("scheduler stopped")
}

// AddOrUpdate inserts or replaces the job for profileID. An existing
// in-flight execution is left untouched; only future fires use the new
// interval.
func (s *Scheduler) AddOrUpdate(profileID string, interval time.Duration) {
	effective := s.sanitizeInterval(interval)

	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[profileID]; ok {
		j.interval = effective
		return
	}
	s.jobs[profileID] = &job{
		profileID: profileID,
		interval:  effective,
		nextFire:  time.Now().Add(s.stagger()),
	}
}

// Remove cancels and forgets the job for profileID. An in-flight
// execution, if any, is allowed to finish.
func (s *Scheduler) Remove(profileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, profileID)
}

// Trigger enqueues an immediate one-shot run for profileID without
// disturbing its periodic cadence. Non-blocking; drops the request if
// the trigger queue is saturated.
func (s *Scheduler) Trigger(profileID string) {
	select {
	case s.triggers <- profileID:
	default:
		s.logger.Warnf("trigger queue saturated, dropping manual run for %s", profileID)
	}
}

// SyncWithProfiles reconciles the job registry against the persisted
// profile set: adds missing jobs, removes orphaned ones, and reschedules
// any job whose effective interval has drifted from its profile's
// configured interval by more than 10 seconds.
func (s *Scheduler) SyncWithProfiles() error {
	doc, err := s.store.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	seen := make(map[string]bool, len(doc.Profiles))
	for id, p := range doc.Profiles {
		seen[id] = true
		want := s.sanitizeInterval(time.Duration(p.Interval.TotalMinutes()) * time.Minute)

		j, ok := s.jobs[id]
		if !ok {
			s.jobs[id] = &job{profileID: id, interval: want, nextFire: now.Add(s.stagger())}
			continue
		}
		if diff := j.interval - want; diff > 10*time.Second || diff < -10*time.Second {
			j.interval = want
			j.nextFire = now.Add(want)
		}
	}

	for id := range s.jobs {
		if id == sentinelProfileID {
			continue
		}
		if !seen[id] {
			delete(s.jobs, id)
		}
	}
	return nil
}

// Status returns a snapshot of the running flag and every job's
// next-fire time and overdue state.
func (s *Scheduler) Status() (running bool, jobsExecuted int64, jobsRunning bool, jobs []JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running.Load(), s.jobsExecuted.Load(), s.jobsRunning.Load(), s.jobs.snapshot(time.Now())
}

func (s *Scheduler) sanitizeIntervals() error {
	return s.store.Mutate(func(doc *models.Document) error {
		for _, p := range doc.Profiles {
			raw := time.Duration(p.Interval.TotalMinutes()) * time.Minute
			sanitized := s.sanitizeInterval(raw)
			if sanitized != raw {
				mins := int(sanitized / time.Minute)
				p.Interval = models.Interval{Hours: mins / 60, Minutes: mins % 60}
			}
		}
		return nil
	})
}

// dispatchLoop is the scheduler's single main loop: on each tick it
// fires due periodic jobs and drains pending manual triggers.
func (s *Scheduler) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(tickResolution)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case profileID := <-s.triggers:
			s.dispatch(ctx, profileID, false)
		case now := <-ticker.C:
			s.dispatchDue(ctx, now)
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []string
	for id, j := range s.jobs {
		if j.due(now) {
			j.executing = true
			due = append(due, id)
		}
	}
	s.mu.Unlock()

	for _, id := range due {
		s.dispatch(ctx, id, true)
	}
}

// dispatch acquires a worker-pool permit (bounded by a 120 s timeout)
// and runs profileID's cycle on a pooled goroutine under a hard
// wall-clock budget. Periodic jobs reschedule their next fire on
// completion; manual triggers do not.
func (s *Scheduler) dispatch(ctx context.Context, profileID string, periodic bool) {
	if !periodic {
		s.mu.Lock()
		if j, ok := s.jobs[profileID]; ok {
			if j.executing {
				s.mu.Unlock()
				s.logger.Debugf("cycle for profile %s already in flight, coalescing manual run", profileID)
				return
			}
			j.executing = true
		}
		s.mu.Unlock()
	}

	select {
	case s.sem <- struct{}{}:
	case <-time.After(time.Duration(s.cfg.Scheduler.SemaphoreWaitSec) * time.Second):
		s.logger.Warnf("timed out acquiring worker permit for profile %s, dropping this tick", profileID)
		s.clearExecuting(profileID, periodic, time.Now())
		return
	case <-ctx.Done():
		return
	}

	s.wg.Go(func() {
		defer func() { <-s.sem }()
		s.runCycle(ctx, profileID, periodic)
	})
}

func (s *Scheduler) runCycle(ctx context.Context, profileID string, periodic bool) {
	if profileID == sentinelProfileID {
		s.jobsRunning.Store(true)
		s.logger.Debug("startup sentinel job fired; dispatch path is live")
		s.removeSentinel()
		return
	}

	cycleCtx, cancel := context.WithTimeout(ctx, cycleBudget)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.runner.Run(cycleCtx, profileID)
	}()

	select {
	case <-done:
	case <-cycleCtx.Done():
		s.logger.Warnf("cycle for profile %s exceeded budget, allowing cleanup grace", profileID)
		select {
		case <-done:
		case <-time.After(cycleCleanupGrace):
			s.logger.Warnf("cycle for profile %s did not settle within cleanup grace", profileID)
		}
	}

	s.jobsExecuted.Inc()
	s.clearExecuting(profileID, periodic, time.Now())
}

// removeSentinel records the sentinel's single firing and deletes it from
// the registry so it never becomes due() again.
func (s *Scheduler) removeSentinel() {
	s.jobsExecuted.Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, sentinelProfileID)
}

func (s *Scheduler) clearExecuting(profileID string, periodic bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[profileID]
	if !ok {
		return
	}
	j.executing = false
	if periodic {
		j.nextFire = now.Add(j.interval)
	}
}

// heartbeatLoop periodically reconciles the job registry against the
// persisted profile set.
func (s *Scheduler) heartbeatLoop(ctx context.Context) {
	interval := s.cfg.HeartbeatInterval(s.constrained)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncWithProfiles(); err != nil {
				s.logger.WithError(err).Error("heartbeat reconciliation failed")
			}
		}
	}
}
