package workload

import (
	"iter"
	"math/rand/v2"
)

// Distribution picks a Kind per work request so that, over many draws, each Kind
// appears in proportion to its configured rate.
type Distribution struct {
	rates  Rates
	bounds [NumKinds]int
	intn   func(int) int
}

type Option func(*Distribution)

// WithIntn replaces the random source. fn must return a value in [0,n) and be safe for
// the callers it will see; the default is math/rand/v2 which is goroutine safe.
func WithIntn(fn func(n int) int) Option {
	return func(d *Distribution) {
		d.intn = fn
	}
}

func NewDistribution(rates Rates, opts ...Option) (*Distribution, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	d := &Distribution{rates: rates, intn: rand.IntN}
	upper := 0
	for i, k := range Kinds {
		upper += rates.Of(k)
		d.bounds[i] = upper
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Distribution) Rates() Rates {
	return d.rates
}

// Sample draws one Kind. Kinds with a zero rate own an empty range and are never drawn.
func (d *Distribution) Sample() Kind {
	v := d.intn(100)
	for i, upper := range d.bounds {
		if v < upper {
			return Kinds[i]
		}
	}
	// unreachable while the rates sum to 100
	return Kinds[NumKinds-1]
}

// Seq returns an endless sequence of samples. Each call starts a fresh sequence.
func (d *Distribution) Seq() iter.Seq[Kind] {
	return func(yield func(Kind) bool) {
		for {
			if !yield(d.Sample()) {
				return
			}
		}
	}
}
