package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pseudobench/internal/backend"
	"pseudobench/internal/cli"
	"pseudobench/internal/logging"
	"pseudobench/internal/metrics"
	"pseudobench/internal/report"
	"pseudobench/internal/runner"
	"pseudobench/internal/tui"
)

const tuiLogFile = "pseudobench.log"

var (
	useTUI      bool
	metricsAddr string
	logLevel    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every configured scenario against the backend",
	RunE:  runBenchmark,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&useTUI, "tui", false, "show the live dashboard instead of progress lines")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")
	f.StringVar(&logLevel, "log-level", "", "override logging.level")
	f.String("backend", "", "override backend.type (memory, bolt, trustdeck, ace, mainzelliste)")
	f.String("uri", "", "override backend.uri")
	f.String("output-dir", "", "override benchmark.outputDir")
	f.String("report-format", "", "override benchmark.reportFormat (csv, parquet)")

	_ = viper.BindPFlag("backend.type", f.Lookup("backend"))
	_ = viper.BindPFlag("backend.uri", f.Lookup("uri"))
	_ = viper.BindPFlag("benchmark.outputDir", f.Lookup("output-dir"))
	_ = viper.BindPFlag("benchmark.reportFormat", f.Lookup("report-format"))
}

func runBenchmark(cmd *cobra.Command, _ []string) error {
	file, err := readConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if logLevel != "" {
		file.Logging.Level = logLevel
	}
	if useTUI && file.Logging.File == "" {
		file.Logging.File = tuiLogFile
	}
	logCloser, err := logging.Configure(file.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	cfgs, err := file.Configurations()
	if err != nil {
		return err
	}
	factory, backendCloser, err := backend.NewFactory(file.Backend)
	if err != nil {
		return err
	}
	defer backendCloser.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan runner.Update, 64)
	driver := &runner.Driver{
		Factory: factory,
		OpenSinks: report.Opener{
			Dir:    file.Benchmark.OutputDir,
			Format: report.Format(file.Benchmark.ReportFormat),
			Log:    logging.WithComponent("report"),
		}.Open,
		StorageTables: file.Backend.StorageTables,
		Updates:       updates,
		Log:           logging.WithComponent("driver"),
	}
	if metricsAddr != "" {
		exporter := metrics.NewExporter()
		driver.Observer = exporter
		go func() {
			if err := exporter.Serve(ctx, metricsAddr); err != nil {
				log.WithError(err).Error("metrics exporter stopped")
			}
		}()
	}

	var (
		results []runner.Result
		runErr  error
	)
	go func() {
		defer close(updates)
		results, runErr = driver.RunAll(ctx, cfgs)
	}()

	printer := cli.New(os.Stdout)
	if useTUI {
		if err := tui.Run(file.Backend.Type, updates, cancel); err != nil {
			cancel()
			log.WithError(err).Error("dashboard failed")
		}
		// the dashboard may quit early; wait for the driver to wind down
		for range updates {
		}
	} else {
		printer.Header(file.Backend, cfgs)
		printer.Follow(updates)
	}

	printer.Summary(results)
	return errors.Wrap(runErr, "benchmark finished with errors")
}
