// Package timezone provides timezone parsing and clock conversion helpers.
//
// Schedules are entered as local wall-clock times and stored in UTC, so the
// poller only ever compares against a single clock.
package timezone

import (
	"fmt"
	"time"
)

// DefaultName is the IANA timezone applied when the user does not specify
// one.
const DefaultName = "America/Sao_Paulo"

// Parse parses an IANA timezone identifier (e.g. "America/Sao_Paulo").
// If the identifier is invalid, returns UTC and an error.
func Parse(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// MustParse parses a timezone or panics. Use for identifiers known valid at
// compile time.
func MustParse(tz string) *time.Location {
	loc, err := Parse(tz)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsValid checks whether a timezone identifier is valid.
func IsValid(tz string) bool {
	_, err := Parse(tz)
	return err == nil
}

// LocalClockToUTC converts an HH:MM wall-clock time in the named timezone to
// the equivalent HH:MM in UTC, using ref to resolve the zone offset in
// effect on that date.
func LocalClockToUTC(clock, tz string, ref time.Time) (string, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return "", fmt.Errorf("invalid time %q: expected HH:MM", clock)
	}
	loc, err := Parse(tz)
	if err != nil {
		return "", err
	}

	local := time.Date(ref.Year(), ref.Month(), ref.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, loc)
	return local.UTC().Format("15:04"), nil
}
