package workload

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the type of operation a work item performs against the backend.
type Kind int

const (
	Create Kind = iota
	Read
	Update
	Delete
	Ping
)

// NumKinds is the size of the closed Kind set.
const NumKinds = 5

// Kinds lists every Kind in draw order.
var Kinds = [NumKinds]Kind{Create, Read, Update, Delete, Ping}

var kindNames = [NumKinds]string{"create", "read", "update", "delete", "ping"}

func (k Kind) String() string {
	if k < 0 || int(k) >= NumKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ErrInvalidRates is returned when a rate tuple cannot drive a Distribution.
var ErrInvalidRates = errors.New("invalid rates")

// Rates are the percentages of dispatch cycles given to each Kind.
type Rates struct {
	Create int
	Read   int
	Update int
	Delete int
	Ping   int
}

// Of returns the rate configured for k.
func (r Rates) Of(k Kind) int {
	switch k {
	case Create:
		return r.Create
	case Read:
		return r.Read
	case Update:
		return r.Update
	case Delete:
		return r.Delete
	case Ping:
		return r.Ping
	}
	return 0
}

func (r Rates) Sum() int {
	return r.Create + r.Read + r.Update + r.Delete + r.Ping
}

// Validate checks every rate is within [0,100] and that they add up to 100.
func (r Rates) Validate() error {
	for _, k := range Kinds {
		if v := r.Of(k); v < 0 || v > 100 {
			return errors.Wrapf(ErrInvalidRates, "%s rate %d is outside [0,100]", k, v)
		}
	}
	if sum := r.Sum(); sum != 100 {
		return errors.Wrapf(ErrInvalidRates, "rates add up to %d, not 100", sum)
	}
	return nil
}

func (r Rates) String() string {
	return fmt.Sprintf("C%d/R%d/U%d/D%d/P%d", r.Create, r.Read, r.Update, r.Delete, r.Ping)
}
