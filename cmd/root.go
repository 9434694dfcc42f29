package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pseudobench/internal/banner"
	"pseudobench/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pseudobench",
	Short: "pseudobench - benchmark driver for pseudonym and identity backends",
	Long: `
pseudobench measures throughput and latency of pseudonymization and identity
management services under a rate-weighted create/read/update/delete/ping workload.

Scenarios are read from a YAML file and run one after another:
  pseudobench run --config scenarios.yaml
  pseudobench dummy --port 8080   (local fake backend for trying things out)`,
	SilenceUsage: true,
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.String())
		_ = cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"scenario file (default is ./config.yaml or $HOME/.pseudobench.yaml)")
	rootCmd.AddCommand(runCmd, dummyCmd)
}

func initConfig() {
	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	config.SetDefaults(v)
	config.BindEnv(v)
}

// readConfig loads the scenario file. Without --config, ./config.yaml is tried before
// $HOME/.pseudobench.yaml; finding neither leaves only defaults and environment.
func readConfig(v *viper.Viper) (*config.File, error) {
	err := v.ReadInConfig()
	if _, missing := err.(viper.ConfigFileNotFoundError); missing && cfgFile == "" {
		v.SetConfigName(".pseudobench")
		err = v.ReadInConfig()
	}
	if _, missing := err.(viper.ConfigFileNotFoundError); err != nil && !missing {
		return nil, errors.Wrap(err, "reading configuration")
	}
	return config.Load(v)
}
