package geo

import (
	"math/rand"
	"sync"
)

// kmPerDegree approximates one degree of latitude in kilometers.
const kmPerDegree = 111.0

// Fuzzer offsets coordinates by a bounded random amount so published map
// points cannot identify a household. Offsets are independent per axis and
// bounded by the configured radius. Fuzzing is applied exactly once, at
// submission time, and its output is never cached.
type Fuzzer struct {
	radiusKM float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFuzzer builds a Fuzzer with the given radius in kilometers. seed fixes
// the random stream; production callers pass a time-derived seed.
func NewFuzzer(radiusKM float64, seed int64) *Fuzzer {
	return &Fuzzer{
		radiusKM: radiusKM,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// RadiusKM returns the configured fuzzing radius.
func (f *Fuzzer) RadiusKM() float64 { return f.radiusKM }

// Fuzz returns the input coordinates displaced by up to ±radius on each
// axis. The displacement magnitude in degrees is radius/111 per axis.
func (f *Fuzzer) Fuzz(lat, lon float64) (float64, float64) {
	f.mu.Lock()
	a, b := f.rng.Float64(), f.rng.Float64()
	f.mu.Unlock()

	maxDeg := f.radiusKM / kmPerDegree
	return lat + (a-0.5)*maxDeg*2, lon + (b-0.5)*maxDeg*2
}
