// Package cli prints the progress of a headless benchmark run.
package cli

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"pseudobench/internal/config"
	"pseudobench/internal/runner"
	"pseudobench/internal/workload"
)

const rule = "======================================================================"

type Printer struct {
	Out io.Writer
}

func New(out io.Writer) *Printer {
	return &Printer{Out: out}
}

func (p *Printer) Header(backend config.Backend, cfgs []config.Configuration) {
	fmt.Fprintf(p.Out, "\nSTARTING PSEUDONYM BENCHMARK\n")
	fmt.Fprintf(p.Out, "%s\n", rule)
	fmt.Fprintf(p.Out, "Backend    : %s\n", backend.Type)
	if backend.URI != "" {
		fmt.Fprintf(p.Out, "URI        : %s\n", backend.URI)
	}
	fmt.Fprintf(p.Out, "Domain     : %s\n", backend.DomainName)
	fmt.Fprintf(p.Out, "Scenarios  : %d\n", len(cfgs))
	for _, c := range cfgs {
		fmt.Fprintf(p.Out, "  - %-28s %s, %s\n", c.Name, c.Rates, c.MaxTime)
	}
	fmt.Fprintf(p.Out, "%s\n\n", rule)
}

// Follow prints every update until updates is closed.
func (p *Printer) Follow(updates <-chan runner.Update) {
	for u := range updates {
		p.print(u)
	}
}

func (p *Printer) print(u runner.Update) {
	switch u.Phase {
	case runner.Preparing:
		fmt.Fprintf(p.Out, "Scenario %d/%d: %s\n", u.Index+1, u.Total, u.Scenario)
		fmt.Fprintf(p.Out, "   - Preparing backend\n")
	case runner.Running, runner.Stopping:
		fmt.Fprintf(p.Out, "\r   - Progress: %.1f %% (currently %.1f TPS)       ", percent(u.Progress()), u.Snapshot.LastTPS)
	case runner.Done:
		fmt.Fprintf(p.Out, "\r   - Progress: 100 %%                             \n")
		fmt.Fprintf(p.Out, " - Done (%d operations, %.1f TPS)\n\n", u.Snapshot.Total(), u.Snapshot.OverallTPS())
	}
}

// percent truncates to one decimal so the display never shows 100 before the deadline.
func percent(fraction float64) float64 {
	return math.Floor(fraction*1000) / 10
}

func (p *Printer) Summary(results []runner.Result) {
	fmt.Fprintf(p.Out, "\nBENCHMARK RESULTS\n")
	fmt.Fprintf(p.Out, "%s\n", rule)
	for _, r := range results {
		snap := r.Snapshot
		fmt.Fprintf(p.Out, "%s\n", r.Scenario)
		fmt.Fprintf(p.Out, "   Duration   : %s\n", snap.Elapsed.Round(time.Millisecond))
		fmt.Fprintf(p.Out, "   Operations : %d (%.2f TPS)\n", snap.Total(), snap.OverallTPS())
		if snap.Ignored > 0 {
			fmt.Fprintf(p.Out, "   Ignored    : %d\n", snap.Ignored)
		}
		for _, k := range workload.Kinds {
			if snap.Counts[k] == 0 {
				continue
			}
			lat := snap.Latency[k]
			fmt.Fprintf(p.Out, "   %-7s %8d  p50 %s  p99 %s  max %s\n", k.String()+":", snap.Counts[k],
				ms(lat.P50), ms(lat.P99), ms(lat.Max))
		}
		if r.Abandoned > 0 {
			fmt.Fprintf(p.Out, "   Abandoned workers: %d\n", r.Abandoned)
		}
		if r.WorkerErrors != nil {
			fmt.Fprintf(p.Out, "   Failed workers: %d\n", len(r.WorkerErrors.Errors))
			for _, err := range r.WorkerErrors.Errors {
				fmt.Fprintf(p.Out, "     %s\n", strings.ReplaceAll(err.Error(), "\n", " "))
			}
		}
	}
	fmt.Fprintf(p.Out, "%s\n", rule)
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}
