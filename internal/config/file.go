package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "PSEUDOBENCH"

// File mirrors the YAML scenario file.
type File struct {
	Benchmark Benchmark `mapstructure:"benchmark"`
	Backend   Backend   `mapstructure:"backend"`
	Logging   Logging   `mapstructure:"logging"`
}

// Benchmark holds the global run parameters shared by every scenario. Times are milliseconds.
type Benchmark struct {
	InitialDBSize            int        `mapstructure:"initialDbSize"`
	MaxTime                  int        `mapstructure:"maxTime"`
	ReportingInterval        int        `mapstructure:"reportingInterval"`
	ReportDBSpace            bool       `mapstructure:"reportDbSpace"`
	ReportingIntervalDBSpace int        `mapstructure:"reportingIntervalDbSpace"`
	NumThreads               int        `mapstructure:"numThreads"`
	NumberOfRepetitions      int        `mapstructure:"numberOfRepetitions"`
	TargetTPS                float64    `mapstructure:"targetTps"`
	OutputDir                string     `mapstructure:"outputDir"`
	ReportFormat             string     `mapstructure:"reportFormat"`
	Scenarios                []Scenario `mapstructure:"scenarios"`
}

// Scenario is a named rate tuple. Missing rates default to zero.
type Scenario struct {
	Name       string `mapstructure:"name"`
	CreateRate int    `mapstructure:"createRate"`
	ReadRate   int    `mapstructure:"readRate"`
	UpdateRate int    `mapstructure:"updateRate"`
	DeleteRate int    `mapstructure:"deleteRate"`
	PingRate   int    `mapstructure:"pingRate"`
}

// Backend selects and parameterises the connector implementation.
type Backend struct {
	Type               string       `mapstructure:"type"`
	URI                string       `mapstructure:"uri"`
	DomainName         string       `mapstructure:"domainName"`
	IdentifierTemplate string       `mapstructure:"identifierTemplate"`
	StorageTables      []string     `mapstructure:"storageTables"`
	TimeoutMillis      int          `mapstructure:"timeoutMillis"`
	InsecureSkipVerify bool         `mapstructure:"insecureSkipVerify"`
	ResetWaitMillis    int          `mapstructure:"resetWaitMillis"`
	Keycloak           Keycloak     `mapstructure:"keycloak"`
	Mainzelliste       Mainzelliste `mapstructure:"mainzelliste"`
	Bolt               Bolt         `mapstructure:"bolt"`
	Memory             Memory       `mapstructure:"memory"`
}

type Keycloak struct {
	AuthURI      string `mapstructure:"authUri"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"clientId"`
	ClientSecret string `mapstructure:"clientSecret"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	SafetyMargin int    `mapstructure:"safetyMarginSeconds"`
}

type Mainzelliste struct {
	APIKey            string `mapstructure:"apiKey"`
	IDType            string `mapstructure:"idType"`
	FirstNameTemplate string `mapstructure:"firstNameTemplate"`
	LastNameTemplate  string `mapstructure:"lastNameTemplate"`
}

type Bolt struct {
	Path string `mapstructure:"path"`
}

type Memory struct {
	LatencyMillis int `mapstructure:"latencyMillis"`
}

type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// SetDefaults registers the defaults used when the file leaves a key out.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("benchmark.initialDbSize", 0)
	v.SetDefault("benchmark.maxTime", 60000)
	v.SetDefault("benchmark.reportingInterval", 1000)
	v.SetDefault("benchmark.reportDbSpace", false)
	v.SetDefault("benchmark.reportingIntervalDbSpace", 10000)
	v.SetDefault("benchmark.numThreads", 4)
	v.SetDefault("benchmark.numberOfRepetitions", 1)
	v.SetDefault("benchmark.targetTps", 0)
	v.SetDefault("benchmark.outputDir", ".")
	v.SetDefault("benchmark.reportFormat", "csv")
	v.SetDefault("backend.type", "memory")
	v.SetDefault("backend.domainName", "benchmark")
	v.SetDefault("backend.identifierTemplate", "ID-{{uuid}}")
	v.SetDefault("backend.timeoutMillis", 30000)
	v.SetDefault("backend.resetWaitMillis", 0)
	v.SetDefault("backend.keycloak.safetyMarginSeconds", 10)
	v.SetDefault("backend.mainzelliste.idType", "extid")
	v.SetDefault("backend.bolt.path", "pseudobench.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// BindEnv makes every key overridable through PSEUDOBENCH_SECTION_KEY variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the configuration held by v.
func Load(v *viper.Viper) (*File, error) {
	f := &File{}
	if err := v.Unmarshal(f); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	return f, nil
}

// Configurations expands every scenario into NumberOfRepetitions validated configurations,
// named <scenario>-<threads>-threads.
func (f *File) Configurations() ([]Configuration, error) {
	b := f.Benchmark
	if len(b.Scenarios) == 0 {
		return nil, errors.Wrap(ErrInvalidConfiguration, "no scenarios configured")
	}
	reps := b.NumberOfRepetitions
	if reps <= 0 {
		reps = 1
	}

	var out []Configuration
	for _, s := range b.Scenarios {
		if s.Name == "" {
			return nil, errors.Wrap(ErrInvalidConfiguration, "scenario without a name")
		}
		for i := 0; i < reps; i++ {
			cfg, err := NewBuilder().
				CreateRate(s.CreateRate).
				ReadRate(s.ReadRate).
				UpdateRate(s.UpdateRate).
				DeleteRate(s.DeleteRate).
				PingRate(s.PingRate).
				NumThreads(b.NumThreads).
				MaxTime(millis(b.MaxTime)).
				Name(fmt.Sprintf("%s-%d-threads", s.Name, b.NumThreads)).
				DomainName(f.Backend.DomainName).
				InitialDBSize(b.InitialDBSize).
				ReportingInterval(millis(b.ReportingInterval)).
				ReportDBSpace(b.ReportDBSpace).
				ReportingIntervalDBSpace(millis(b.ReportingIntervalDBSpace)).
				TargetTPS(b.TargetTPS).
				Build()
			if err != nil {
				return nil, errors.Wrapf(err, "scenario %q", s.Name)
			}
			out = append(out, cfg)
		}
	}
	return out, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
