// Package clock supplies the single timezone-aware "now" reading used
// when stamping persisted timestamps, so callers depend on a pure
// function rather than reaching for the system zone database at random
// call sites.
package clock

import "time"

// fallbackCEST is used when the runtime has no IANA zone database
// available and "Europe/Amsterdam" cannot be loaded; it is the summer
// (CEST) offset and does not itself observe the DST transition.
var fallbackCEST = time.FixedZone("CEST", 2*60*60)

var amsterdam = loadAmsterdam()

func loadAmsterdam() *time.Location {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		return fallbackCEST
	}
	return loc
}

// Now returns the current instant in the Europe/Amsterdam zone (DST-correct
// when the zone database is available, fixed +02:00 otherwise). Every
// timestamp persisted to the document is stamped via this function, so
// marshaled JSON carries the configured offset rather than the host's.
func Now() time.Time {
	return time.Now().In(amsterdam)
}
