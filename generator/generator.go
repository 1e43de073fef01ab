package generator

import (
	"math/rand"
	"time"
)

// Generator is a generator capable of generating strings.
type Generator interface {
	// NextString generates the next string in the distribution.
	NextString() string
	// LastString returns the previous string generated by the distribution.
	LastString() string
}

// NewRandom returns a source of randomness for a single goroutine.
// A zero seed seeds from the clock.
func NewRandom(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
