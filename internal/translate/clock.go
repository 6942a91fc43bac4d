package translate

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can freeze time via SetClock.
// Relative phrases like "last month" resolve against it.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for translation. Pass nil to reset to real
// time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
