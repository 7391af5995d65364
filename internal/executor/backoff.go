package executor

import "time"

// backoffSchedule is the delay before retry n+1 after attempt n fails
// transiently. Attempts beyond the schedule reuse the last entry, though
// with the default max of 5 attempts that never happens.
var backoffSchedule = []time.Duration{
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
}

// Backoff returns the delay to apply after the given number of completed
// attempts (1-based: Backoff(1) follows the first failed attempt).
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > len(backoffSchedule) {
		attempts = len(backoffSchedule)
	}
	return backoffSchedule[attempts-1]
}
