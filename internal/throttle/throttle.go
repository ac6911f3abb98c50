// Package throttle models the redemption abuse guard as an explicit state
// machine instead of scattered nullable-timestamp checks. It has no storage of
// its own: the state is derived from two fields on the User row, and the lock
// expires lazily on read.
package throttle

import "time"

// Tuning constants: ten failed attempts lock redemption for one hour and set
// the sticky flag. Only an admin clears the flag.
const (
	MaxFailedAttempts = 10
	LockDuration      = time.Hour
)

// State of the throttle for one user.
type State int

const (
	Normal State = iota
	Locked
)

// StateOf derives the throttle state from the persisted counters. A cooldown
// in the past counts as Normal without requiring a write.
func StateOf(cooldownEnd *time.Time, now time.Time) (State, time.Time) {
	if cooldownEnd != nil && now.Before(*cooldownEnd) {
		return Locked, *cooldownEnd
	}
	return Normal, time.Time{}
}

// ShouldLock reports whether the given failure count engages the lock.
func ShouldLock(failedAttempts int) bool {
	return failedAttempts >= MaxFailedAttempts
}
