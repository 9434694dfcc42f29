package runner

import (
	"context"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pseudobench/internal/config"
	"pseudobench/internal/connector"
	"pseudobench/internal/stats"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultJoinTimeout  = 5 * time.Second
)

type Phase int

const (
	Preparing Phase = iota
	Running
	Stopping
	Done
)

func (p Phase) String() string {
	switch p {
	case Preparing:
		return "preparing"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "done"
	}
}

// Update is published to Driver.Updates whenever the scenario changes phase or reports.
type Update struct {
	Scenario string
	// Index is zero based; Total is the number of scenarios in the run.
	Index    int
	Total    int
	Phase    Phase
	MaxTime  time.Duration
	Snapshot stats.Snapshot
}

// Progress is the elapsed fraction of the scenario deadline, capped at 1.
func (u Update) Progress() float64 {
	if u.MaxTime <= 0 || u.Phase == Done {
		return 1
	}
	return min(1, float64(u.Snapshot.Elapsed)/float64(u.MaxTime))
}

type ReportSink interface {
	stats.Sink
	io.Closer
}

type StorageSink interface {
	AppendStorage(stats.StorageSample) error
	io.Closer
}

// Sinks receive the rows of one scenario. Either may be nil.
type Sinks struct {
	Report  ReportSink
	Storage StorageSink
}

func (s Sinks) Close() error {
	var result *multierror.Error
	if s.Report != nil {
		result = multierror.Append(result, s.Report.Close())
	}
	if s.Storage != nil {
		result = multierror.Append(result, s.Storage.Close())
	}
	return result.ErrorOrNil()
}

// RowObserver may be implemented by Driver.Observer to receive every report row.
type RowObserver interface {
	Row(scenario string, row stats.Row)
}

// Result summarises one finished scenario.
type Result struct {
	Scenario string
	Config   config.Configuration
	Snapshot stats.Snapshot
	Rows     int
	Workers  int
	// Abandoned counts workers that did not finish within the join timeout.
	Abandoned int
	// WorkerErrors holds the operation errors that ended workers early.
	WorkerErrors *multierror.Error
}

// Driver runs scenarios one after another: prepare, run workers until the deadline while
// reporting, then stop and join the workers.
type Driver struct {
	Factory connector.Factory
	// OpenSinks is called once per scenario after preparation.
	OpenSinks     func(cfg config.Configuration) (Sinks, error)
	StorageTables []string
	// Updates receives progress without blocking the driver; updates are dropped when full.
	Updates  chan<- Update
	Observer stats.Observer

	PollInterval time.Duration
	JoinTimeout  time.Duration
	Log          *log.Entry

	index, total int
}

func (d *Driver) logger() *log.Entry {
	if d.Log != nil {
		return d.Log
	}
	return log.WithField("component", "driver")
}

func (d *Driver) publish(u Update) {
	if d.Updates == nil {
		return
	}
	u.Index, u.Total = d.index, d.total
	select {
	case d.Updates <- u:
	default:
	}
}

type workerExit struct {
	id  int
	err error
}

// RunAll executes every configuration in order, never overlapping two scenarios. A failed
// scenario does not stop the run; all failures are returned together.
func (d *Driver) RunAll(ctx context.Context, cfgs []config.Configuration) ([]Result, error) {
	var result *multierror.Error
	results := make([]Result, 0, len(cfgs))
	d.total = len(cfgs)
	for i, cfg := range cfgs {
		if ctx.Err() != nil {
			result = multierror.Append(result, errors.Wrap(ctx.Err(), "run interrupted"))
			break
		}
		d.index = i
		res, err := d.Execute(ctx, cfg)
		if err != nil {
			d.logger().WithError(err).WithField("scenario", cfg.Name).Error("scenario failed")
			result = multierror.Append(result, errors.Wrapf(err, "scenario %s", cfg.Name))
		}
		if res.WorkerErrors != nil {
			result = multierror.Append(result, errors.Wrapf(res.WorkerErrors, "scenario %s", cfg.Name))
		}
		results = append(results, res)
	}
	return results, result.ErrorOrNil()
}

// Execute runs one scenario. The returned error covers preparation and sink failures; failed
// workers are reported in Result.WorkerErrors.
func (d *Driver) Execute(ctx context.Context, cfg config.Configuration) (Result, error) {
	logger := d.logger().WithField("scenario", cfg.Name)
	pollInterval := d.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	joinTimeout := d.JoinTimeout
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}
	res := Result{Scenario: cfg.Name, Config: cfg}

	// PREPARING
	var statsOpts []stats.Option
	if d.Observer != nil {
		statsOpts = append(statsOpts, stats.WithObserver(d.Observer))
	}
	statistics := stats.New(statsOpts...)
	update := func(phase Phase) {
		d.publish(Update{Scenario: cfg.Name, Phase: phase, MaxTime: cfg.MaxTime, Snapshot: statistics.Snapshot()})
	}
	update(Preparing)

	provider, err := NewWorkProvider(cfg, d.Factory, statistics, WithLogger(logger))
	if err != nil {
		return res, &PreparationError{Scenario: cfg.Name, Err: err}
	}
	logger.Infof("preparing scenario (%s, %d threads, %d initial records)", cfg.Rates, cfg.NumThreads, cfg.InitialDBSize)
	if err := provider.Prepare(ctx); err != nil {
		return res, &PreparationError{Scenario: cfg.Name, Err: err}
	}
	workers := make([]*Worker, 0, cfg.NumThreads)
	for i := 0; i < cfg.NumThreads; i++ {
		w, err := provider.NewWorker(i)
		if err != nil {
			return res, &PreparationError{Scenario: cfg.Name, Err: err}
		}
		workers = append(workers, w)
	}
	sinks := Sinks{}
	if d.OpenSinks != nil {
		if sinks, err = d.OpenSinks(cfg); err != nil {
			return res, &PreparationError{Scenario: cfg.Name, Err: errors.Wrap(err, "opening report sinks")}
		}
	}
	var sinkErrs *multierror.Error

	// RUNNING
	statistics.Start()
	stop := make(chan struct{})
	exits := make(chan workerExit, len(workers))
	for _, w := range workers {
		go func() {
			exits <- workerExit{id: w.ID, err: w.Run(ctx, stop)}
		}()
	}
	res.Workers = len(workers)
	alive := len(workers)
	update(Running)
	logger.Infof("running for %s", cfg.MaxTime)

	collect := func(e workerExit) {
		alive--
		if e.err != nil {
			res.WorkerErrors = multierror.Append(res.WorkerErrors, errors.Wrapf(e.err, "worker %d", e.id))
		}
	}
	report := func(phase Phase) {
		row, err := statistics.Report(sinks.Report)
		res.Rows++
		if err != nil {
			sinkErrs = multierror.Append(sinkErrs, err)
		}
		if ro, ok := d.Observer.(RowObserver); ok {
			ro.Row(cfg.Name, row)
		}
		logger.Debugf("%d operations, %.1f TPS", row.Total(), row.IntervalTPS)
		update(phase)
	}
	lastStorage := statistics.StartTime()
	sampleStorage := func(now time.Time) {
		lastStorage = now
		for _, table := range d.StorageTables {
			usage, ok, err := provider.StorageConsumption(ctx, table)
			if !ok {
				return
			}
			if err != nil {
				logger.WithError(err).WithField("table", table).Warn("storage report failed")
				continue
			}
			if sinks.Storage != nil {
				sample := stats.StorageSample{Timestamp: now, Elapsed: statistics.Elapsed(), Table: table, Usage: usage}
				if err := sinks.Storage.AppendStorage(sample); err != nil {
					sinkErrs = multierror.Append(sinkErrs, err)
				}
			}
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
loop:
	for alive > 0 {
		select {
		case <-ctx.Done():
			logger.Warn("run cancelled")
			break loop
		case e := <-exits:
			collect(e)
			continue
		case <-ticker.C:
		}

		now := time.Now()
		if now.Sub(statistics.LastTime()) >= cfg.ReportingInterval {
			report(Running)
		}
		if cfg.ReportDBSpace && now.Sub(lastStorage) >= cfg.ReportingIntervalDBSpace {
			sampleStorage(now)
		}
		if statistics.Elapsed() >= cfg.MaxTime {
			break loop
		}
	}
	if alive == 0 && statistics.Elapsed() < cfg.MaxTime {
		logger.Error("all workers failed, ending scenario early")
	}

	// STOPPING
	update(Stopping)
	close(stop)
	deadline := time.NewTimer(joinTimeout)
	defer deadline.Stop()
join:
	for alive > 0 {
		select {
		case e := <-exits:
			collect(e)
		case <-deadline.C:
			res.Abandoned = alive
			logger.Warnf("%d workers did not stop within %s and were abandoned", alive, joinTimeout)
			break join
		}
	}

	// DONE
	report(Stopping)
	if err := sinks.Close(); err != nil {
		sinkErrs = multierror.Append(sinkErrs, err)
	}
	res.Snapshot = statistics.Snapshot()
	d.publish(Update{Scenario: cfg.Name, Phase: Done, MaxTime: cfg.MaxTime, Snapshot: res.Snapshot})
	logger.WithFields(log.Fields{
		"operations": res.Snapshot.Total(),
		"ignored":    res.Snapshot.Ignored,
		"tps":        res.Snapshot.OverallTPS(),
	}).Info("scenario finished")

	return res, errors.Wrap(sinkErrs.ErrorOrNil(), "writing reports")
}
