package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"pseudobench/internal/workload"
)

// ErrInvalidConfiguration wraps every validation failure raised by Builder.Build.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Configuration holds the parameters of one benchmark scenario. It is a value type: build it
// with a Builder and pass copies around.
type Configuration struct {
	Rates                    workload.Rates
	NumThreads               int
	MaxTime                  time.Duration
	Name                     string
	DomainName               string
	InitialDBSize            int
	ReportingInterval        time.Duration
	ReportDBSpace            bool
	ReportingIntervalDBSpace time.Duration
	TargetTPS                float64
}

// Builder collects scenario parameters and validates them on Build.
type Builder struct {
	cfg Configuration
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) CreateRate(v int) *Builder { b.cfg.Rates.Create = v; return b }
func (b *Builder) ReadRate(v int) *Builder   { b.cfg.Rates.Read = v; return b }
func (b *Builder) UpdateRate(v int) *Builder { b.cfg.Rates.Update = v; return b }
func (b *Builder) DeleteRate(v int) *Builder { b.cfg.Rates.Delete = v; return b }
func (b *Builder) PingRate(v int) *Builder   { b.cfg.Rates.Ping = v; return b }

func (b *Builder) Rates(r workload.Rates) *Builder {
	b.cfg.Rates = r
	return b
}

func (b *Builder) NumThreads(n int) *Builder {
	b.cfg.NumThreads = n
	return b
}

func (b *Builder) MaxTime(d time.Duration) *Builder {
	b.cfg.MaxTime = d
	return b
}

func (b *Builder) Name(name string) *Builder {
	b.cfg.Name = name
	return b
}

func (b *Builder) DomainName(name string) *Builder {
	b.cfg.DomainName = name
	return b
}

// InitialDBSize sets the number of records created while preparing. Scenarios with read,
// update or delete work need at least one.
func (b *Builder) InitialDBSize(n int) *Builder {
	b.cfg.InitialDBSize = n
	return b
}

func (b *Builder) ReportingInterval(d time.Duration) *Builder {
	b.cfg.ReportingInterval = d
	return b
}

func (b *Builder) ReportDBSpace(enabled bool) *Builder {
	b.cfg.ReportDBSpace = enabled
	return b
}

func (b *Builder) ReportingIntervalDBSpace(d time.Duration) *Builder {
	b.cfg.ReportingIntervalDBSpace = d
	return b
}

// TargetTPS caps dispatched work items per second across all workers. Zero disables the cap.
func (b *Builder) TargetTPS(tps float64) *Builder {
	b.cfg.TargetTPS = tps
	return b
}

// Build validates the collected values and returns the Configuration.
func (b *Builder) Build() (Configuration, error) {
	c := b.cfg
	if c.NumThreads < 0 || c.MaxTime < 0 || c.InitialDBSize < 0 || c.TargetTPS < 0 {
		return Configuration{}, errors.Wrap(ErrInvalidConfiguration, "all numeric values must be zero or positive")
	}
	for _, k := range workload.Kinds {
		if c.Rates.Of(k) < 0 {
			return Configuration{}, errors.Wrapf(ErrInvalidConfiguration, "%s rate must be zero or positive", k)
		}
	}
	if err := c.Rates.Validate(); err != nil {
		return Configuration{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if c.Name == "" || c.DomainName == "" {
		return Configuration{}, errors.Wrap(ErrInvalidConfiguration, "name and domain name must not be empty")
	}
	if c.InitialDBSize == 0 && (c.Rates.Read > 0 || c.Rates.Update > 0 || c.Rates.Delete > 0) {
		return Configuration{}, errors.Wrap(ErrInvalidConfiguration,
			"read, update or delete work needs a positive initial database size")
	}
	if c.ReportingInterval <= 0 {
		return Configuration{}, errors.Wrap(ErrInvalidConfiguration, "reporting interval must be greater than zero")
	}
	if c.ReportingIntervalDBSpace <= 0 {
		return Configuration{}, errors.Wrap(ErrInvalidConfiguration, "storage reporting interval must be greater than zero")
	}
	return c, nil
}
