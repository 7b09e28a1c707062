// Package duration converts work intervals into the "Nh Mm" display format
// used across the application. All functions are pure and safe for
// concurrent use.
package duration

import (
	"fmt"
	"time"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
)

// Zero is the formatted zero duration.
const Zero = "0h 0m"

// Format renders d as whole hours and minutes. Seconds are truncated, never
// rounded. Negative durations clamp to zero.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// Between formats the interval from start to end. An end before start is
// treated as a zero interval rather than an error; upstream callers do not
// guard against clock skew.
func Between(start, end time.Time) string {
	return Format(end.Sub(start))
}

// Total sums the durations of all sessions plus extra (the live segment of a
// running timer not yet persisted) and formats the grand total. Sessions
// without an end time are measured against now.
func Total(sessions []domain.WorkSession, extra time.Duration, now time.Time) string {
	var total time.Duration
	for _, s := range sessions {
		end := now
		if s.EndTime != nil {
			end = *s.EndTime
		}
		if d := end.Sub(s.StartTime); d > 0 {
			total += d
		}
	}
	return Format(total + extra)
}
