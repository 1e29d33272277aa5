// Package clock abstracts "now" so staleness and on-shift decisions can be
// tested against arbitrary instants.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// Real is the production clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed always reports the same instant.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }
