package report

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"pseudobench/internal/stats"
	"pseudobench/internal/workload"
)

type parquetRow struct {
	Timestamp     int64   `parquet:"name=timestamp, type=INT64"`
	ElapsedMillis int64   `parquet:"name=elapsed_millis, type=INT64"`
	Create        int64   `parquet:"name=create_count, type=INT64"`
	Read          int64   `parquet:"name=read_count, type=INT64"`
	Update        int64   `parquet:"name=update_count, type=INT64"`
	Delete        int64   `parquet:"name=delete_count, type=INT64"`
	Ping          int64   `parquet:"name=ping_count, type=INT64"`
	IntervalTPS   float64 `parquet:"name=interval_tps, type=DOUBLE"`
}

// ParquetSink writes report rows to a parquet file. Rows become visible once the sink is closed.
type ParquetSink struct {
	file   source.ParquetFile
	writer *writer.ParquetWriter
}

func CreateParquet(path string) (*ParquetSink, error) {
	file, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating parquet report file")
	}
	pw, err := writer.NewParquetWriter(file, new(parquetRow), 1)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "creating parquet writer")
	}
	return &ParquetSink{file: file, writer: pw}, nil
}

func (s *ParquetSink) Append(row stats.Row) error {
	return errors.Wrap(s.writer.Write(parquetRow{
		Timestamp:     row.Timestamp.UnixMilli(),
		ElapsedMillis: row.Elapsed.Milliseconds(),
		Create:        int64(row.Counts[workload.Create]),
		Read:          int64(row.Counts[workload.Read]),
		Update:        int64(row.Counts[workload.Update]),
		Delete:        int64(row.Counts[workload.Delete]),
		Ping:          int64(row.Counts[workload.Ping]),
		IntervalTPS:   row.IntervalTPS,
	}), "writing parquet row")
}

func (s *ParquetSink) Close() error {
	var result *multierror.Error
	if err := s.writer.WriteStop(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "finishing parquet report"))
	}
	if err := s.file.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "closing parquet report"))
	}
	return result.ErrorOrNil()
}
