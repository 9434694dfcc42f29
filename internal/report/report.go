// Package report writes the rows of a scenario to files in the output directory.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pseudobench/internal/config"
	"pseudobench/internal/runner"
	"pseudobench/internal/stats"
)

// TimestampLayout is used in report file names.
const TimestampLayout = "2006-01-02_15.04.05"

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

var ErrUnknownFormat = errors.New("unknown report format")

// Sink receives one row per reporting tick.
type Sink interface {
	stats.Sink
	Close() error
}

// FileName returns "<name>-<timestamp>.<ext>".
func FileName(name string, at time.Time, ext string) string {
	return fmt.Sprintf("%s-%s.%s", name, at.Format(TimestampLayout), ext)
}

// StorageFileName returns "<name>_DB_STORAGE-<timestamp>.csv".
func StorageFileName(name string, at time.Time) string {
	return FileName(name+"_DB_STORAGE", at, "csv")
}

// Opener creates the report files of each scenario. Its Open method fits runner.Driver.OpenSinks.
type Opener struct {
	Dir    string
	Format Format
	// Now defaults to time.Now.
	Now func() time.Time
	Log *log.Entry
}

func (o Opener) Open(cfg config.Configuration) (runner.Sinks, error) {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	logger := o.Log
	if logger == nil {
		logger = log.WithField("component", "report")
	}
	dir := o.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return runner.Sinks{}, errors.Wrapf(err, "creating output directory %s", dir)
	}

	at := now()
	var sinks runner.Sinks
	switch o.Format {
	case FormatCSV, "":
		path := filepath.Join(dir, FileName(cfg.Name, at, "csv"))
		sink, err := CreateCSV(path)
		if err != nil {
			return runner.Sinks{}, err
		}
		sinks.Report = sink
		logger.WithField("file", path).Info("writing report")
	case FormatParquet:
		path := filepath.Join(dir, FileName(cfg.Name, at, "parquet"))
		sink, err := CreateParquet(path)
		if err != nil {
			return runner.Sinks{}, err
		}
		sinks.Report = sink
		logger.WithField("file", path).Info("writing report")
	default:
		return runner.Sinks{}, errors.Wrapf(ErrUnknownFormat, "%q", o.Format)
	}

	if cfg.ReportDBSpace {
		path := filepath.Join(dir, StorageFileName(cfg.Name, at))
		storage, err := CreateStorageCSV(path)
		if err != nil {
			_ = sinks.Close()
			return runner.Sinks{}, err
		}
		sinks.Storage = storage
		logger.WithField("file", path).Info("writing storage report")
	}
	return sinks, nil
}

var (
	_ Sink               = (*CSVSink)(nil)
	_ Sink               = (*ParquetSink)(nil)
	_ runner.StorageSink = (*StorageCSVSink)(nil)
)
