package utils

import "time"

// TimeProvider interface for time operations
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider implements TimeProvider using actual system time
type RealTimeProvider struct{}

func (p RealTimeProvider) Now() time.Time {
	return time.Now()
}

// FixedTimeProvider always returns the same instant. Used in tests.
type FixedTimeProvider struct {
	T time.Time
}

func (p FixedTimeProvider) Now() time.Time {
	return p.T
}
