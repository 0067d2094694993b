/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"math/rand/v2"
	"time"
)

// Timer is a pending callback armed on a Clock.
type Timer interface {
	Stop() bool
}

// Clock is the time source for phase delays and gate deadlines.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Rand picks category indexes.
type Rand interface {
	IntN(n int) int
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// globalRand uses the package-level generator, which is safe for concurrent rooms.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }
