package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"pseudobench/internal/stats"
)

// Header is the first line of every CSV report.
var Header = []string{
	"elapsedMillis", "createCount", "readCount", "updateCount", "deleteCount", "pingCount", "intervalTPS",
}

// StorageHeader is the first line of the storage report.
var StorageHeader = []string{"timestamp", "elapsedMillis", "table", "usage"}

// CSVSink writes report rows as CSV, flushing after every row so a crashed run keeps its data.
type CSVSink struct {
	out io.WriteCloser
	w   *csv.Writer
}

func CreateCSV(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating report file")
	}
	return NewCSVSink(f, Header)
}

// NewCSVSink writes header to out and returns a sink that owns out.
func NewCSVSink(out io.WriteCloser, header []string) (*CSVSink, error) {
	s := &CSVSink{out: out, w: csv.NewWriter(out)}
	if err := s.write(header); err != nil {
		_ = out.Close()
		return nil, err
	}
	return s, nil
}

func (s *CSVSink) Append(row stats.Row) error {
	record := make([]string, 0, len(Header))
	record = append(record, strconv.FormatInt(row.Elapsed.Milliseconds(), 10))
	for _, c := range row.Counts {
		record = append(record, strconv.FormatUint(c, 10))
	}
	record = append(record, strconv.FormatFloat(row.IntervalTPS, 'f', 2, 64))
	return s.write(record)
}

func (s *CSVSink) write(record []string) error {
	if err := s.w.Write(record); err != nil {
		return errors.Wrap(err, "writing report row")
	}
	s.w.Flush()
	return errors.Wrap(s.w.Error(), "flushing report")
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.out.Close()
		return errors.Wrap(err, "flushing report")
	}
	return s.out.Close()
}

// StorageCSVSink writes storage samples, one line per table and tick.
type StorageCSVSink struct {
	*CSVSink
}

func CreateStorageCSV(path string) (*StorageCSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating storage report file")
	}
	s, err := NewCSVSink(f, StorageHeader)
	if err != nil {
		return nil, err
	}
	return &StorageCSVSink{CSVSink: s}, nil
}

func (s *StorageCSVSink) AppendStorage(sample stats.StorageSample) error {
	return s.write([]string{
		strconv.FormatInt(sample.Timestamp.UnixMilli(), 10),
		strconv.FormatInt(sample.Elapsed.Milliseconds(), 10),
		sample.Table,
		sample.Usage,
	})
}
