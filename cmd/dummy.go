package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pseudobench/internal/dummy"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Serve a fake Keycloak, TrustDeck, ACE and Mainzelliste backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		port, _ := flags.GetInt("port")
		latency, _ := flags.GetDuration("latency")
		jitter, _ := flags.GetDuration("jitter")
		errorRate, _ := flags.GetFloat64("error-rate")
		apiKey, _ := flags.GetString("api-key")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return dummy.New(dummy.ServerConfig{
			Port:      port,
			Latency:   latency,
			Jitter:    jitter,
			ErrorRate: errorRate,
			APIKey:    apiKey,
		}).Run(ctx)
	},
}

func init() {
	f := dummyCmd.Flags()
	f.IntP("port", "p", 8080, "port to listen on")
	f.Duration("latency", 0, "latency added to every API call")
	f.Duration("jitter", time.Duration(0), "random extra latency up to this value")
	f.Float64("error-rate", 0, "fraction of API calls answered with 500")
	f.String("api-key", "", "Mainzelliste API key to require")
}
