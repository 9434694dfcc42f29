package runner

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"pseudobench/internal/config"
	"pseudobench/internal/connector"
	"pseudobench/internal/stats"
	"pseudobench/internal/workload"
)

// WorkProvider turns a Configuration and a connector factory into an endless stream of work
// items. It owns the scenario's RecordSet.
type WorkProvider struct {
	cfg      config.Configuration
	factory  connector.Factory
	dist     *workload.Distribution
	distOpts []workload.Option
	stats    *stats.Statistics
	records  *RecordSet
	limiter  *rate.Limiter

	// admin is the connector used by Prepare and for storage reports
	admin connector.Connector
	log   *log.Entry
}

type ProviderOption func(*WorkProvider)

// WithDistributionOptions customises the kind sampler.
func WithDistributionOptions(opts ...workload.Option) ProviderOption {
	return func(p *WorkProvider) { p.distOpts = append(p.distOpts, opts...) }
}

func WithLogger(entry *log.Entry) ProviderOption {
	return func(p *WorkProvider) { p.log = entry }
}

func NewWorkProvider(cfg config.Configuration, factory connector.Factory, statistics *stats.Statistics,
	opts ...ProviderOption) (*WorkProvider, error) {
	p := &WorkProvider{
		cfg:     cfg,
		factory: factory,
		stats:   statistics,
		records: NewRecordSet(),
		log:     log.WithField("scenario", cfg.Name),
	}
	if cfg.TargetTPS > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.TargetTPS), max(1, cfg.NumThreads))
	}
	for _, opt := range opts {
		opt(p)
	}
	dist, err := workload.NewDistribution(cfg.Rates, p.distOpts...)
	if err != nil {
		return nil, err
	}
	p.dist = dist
	return p, nil
}

func (p *WorkProvider) Records() *RecordSet {
	return p.records
}

// Prepare resets the backend once and seeds InitialDBSize records. Seeded records join the
// RecordSet but are not counted in the statistics.
func (p *WorkProvider) Prepare(ctx context.Context) error {
	conn, err := p.factory.New()
	if err != nil {
		return errors.Wrap(err, "creating connector")
	}
	if err := conn.Prepare(ctx); err != nil {
		return errors.Wrap(err, "resetting backend")
	}
	for i := 0; i < p.cfg.InitialDBSize; i++ {
		ref, err := conn.Create(ctx)
		if err != nil {
			return errors.Wrapf(err, "seeding record %d of %d", i+1, p.cfg.InitialDBSize)
		}
		p.records.Add(ref)
	}
	p.admin = conn
	p.log.Debugf("seeded %d records", p.cfg.InitialDBSize)
	return nil
}

// NewWorker creates a worker with its own connector.
func (p *WorkProvider) NewWorker(id int) (*Worker, error) {
	conn, err := p.factory.New()
	if err != nil {
		return nil, errors.Wrapf(err, "creating connector for worker %d", id)
	}
	return &Worker{
		ID:       id,
		conn:     conn,
		provider: p,
		log:      p.log.WithField("worker", id),
	}, nil
}

// Work samples the next kind and binds it to conn.
func (p *WorkProvider) Work(conn connector.Connector, stop <-chan struct{}) Work {
	return Work{
		Kind:    p.dist.Sample(),
		Conn:    conn,
		Stats:   p.stats,
		Records: p.records,
		MaxTime: p.cfg.MaxTime,
		Stop:    stop,
	}
}

// wait blocks until the rate limiter admits another item.
func (p *WorkProvider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// StorageConsumption asks the backend how much storage table uses. It returns false when the
// connector cannot report storage.
func (p *WorkProvider) StorageConsumption(ctx context.Context, table string) (string, bool, error) {
	reporter, ok := p.admin.(connector.StorageReporter)
	if !ok {
		return "", false, nil
	}
	usage, err := reporter.StorageConsumption(ctx, table)
	return usage, true, err
}
