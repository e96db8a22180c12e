package scheduler

import "time"

// job is one profile's scheduling state: its effective cadence, next
// scheduled fire time, and whether a cycle for it is currently in
// flight. Exactly one job exists per live profile.
type job struct {
	profileID string
	interval  time.Duration // effective, post-sanitisation cadence
	nextFire  time.Time
	executing bool
}

// due reports whether j should fire at instant now.
func (j *job) due(now time.Time) bool {
	return !j.executing && !j.nextFire.After(now)
}

// registry is the scheduler's job table, always accessed under the
// scheduler's mutex.
type registry map[string]*job

func (r registry) snapshot(now time.Time) []JobStatus {
	out := make([]JobStatus, 0, len(r))
	for _, j := range r {
		out = append(out, JobStatus{
			ProfileID: j.profileID,
			NextFire:  j.nextFire,
			Executing: j.executing,
			Overdue:   now.After(j.nextFire.Add(misfireGrace)),
		})
	}
	return out
}

// JobStatus is the externally visible snapshot of one job, returned by
// Scheduler.Status.
type JobStatus struct {
	ProfileID string
	NextFire  time.Time
	Executing bool
	Overdue   bool
}
