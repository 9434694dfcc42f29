package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pseudobench/internal/workload"
)

func validBuilder() *Builder {
	return NewBuilder().
		CreateRate(40).ReadRate(30).UpdateRate(10).DeleteRate(10).PingRate(10).
		NumThreads(4).
		MaxTime(2 * time.Second).
		Name("mixed").
		DomainName("domain").
		InitialDBSize(10).
		ReportingInterval(500 * time.Millisecond).
		ReportingIntervalDBSpace(time.Second)
}

func TestBuild_Valid(t *testing.T) {
	cfg, err := validBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, "mixed", cfg.Name)
	assert.Equal(t, 40, cfg.Rates.Create)
	assert.Equal(t, 2*time.Second, cfg.MaxTime)
}

func TestBuild_Invalid(t *testing.T) {
	tests := map[string]func(b *Builder){
		"rates below 100":          func(b *Builder) { b.PingRate(0) },
		"rates above 100":          func(b *Builder) { b.PingRate(20) },
		"negative rate":            func(b *Builder) { b.CreateRate(-10).PingRate(60) },
		"negative threads":         func(b *Builder) { b.NumThreads(-1) },
		"negative max time":        func(b *Builder) { b.MaxTime(-time.Second) },
		"negative initial db size": func(b *Builder) { b.InitialDBSize(-1) },
		"empty db with reads":      func(b *Builder) { b.InitialDBSize(0) },
		"zero reporting interval":  func(b *Builder) { b.ReportingInterval(0) },
		"negative storage interval": func(b *Builder) {
			b.ReportingIntervalDBSpace(-time.Millisecond)
		},
		"empty name":        func(b *Builder) { b.Name("") },
		"empty domain name": func(b *Builder) { b.DomainName("") },
		"negative tps":      func(b *Builder) { b.TargetTPS(-1) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			b := validBuilder()
			mutate(b)
			_, err := b.Build()
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestBuild_EmptyDatabaseAllowedForCreateAndPing(t *testing.T) {
	_, err := validBuilder().
		CreateRate(50).ReadRate(0).UpdateRate(0).DeleteRate(0).PingRate(50).
		InitialDBSize(0).
		Build()
	assert.NoError(t, err)
}

func TestBuild_RateErrorKeepsCause(t *testing.T) {
	_, err := validBuilder().PingRate(0).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.ErrorIs(t, err, workload.ErrInvalidRates)
	assert.Contains(t, err.Error(), "rates add up to 90")
}

const scenarioFile = `
benchmark:
  initialDbSize: 25
  maxTime: 3000
  reportingInterval: 250
  numThreads: 8
  numberOfRepetitions: 2
  scenarios:
    - name: create
      createRate: 100
    - name: mixed
      createRate: 10
      readRate: 60
      updateRate: 20
      deleteRate: 5
      pingRate: 5
backend:
  type: trustdeck
  uri: http://localhost:8080
  domainName: bench
  keycloak:
    realm: development
    clientId: ace
`

func loadFile(t *testing.T, content string) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	f, err := Load(v)
	require.NoError(t, err)
	return f
}

func TestLoad_ExpandsScenarios(t *testing.T) {
	f := loadFile(t, scenarioFile)

	assert.Equal(t, "trustdeck", f.Backend.Type)
	assert.Equal(t, "development", f.Backend.Keycloak.Realm)
	assert.Equal(t, 10, f.Backend.Keycloak.SafetyMargin)
	assert.Equal(t, "csv", f.Benchmark.ReportFormat)

	cfgs, err := f.Configurations()
	require.NoError(t, err)
	require.Len(t, cfgs, 4)

	assert.Equal(t, "create-8-threads", cfgs[0].Name)
	assert.Equal(t, "create-8-threads", cfgs[1].Name)
	assert.Equal(t, "mixed-8-threads", cfgs[2].Name)
	assert.Equal(t, 60, cfgs[2].Rates.Read)
	assert.Equal(t, "bench", cfgs[2].DomainName)
	assert.Equal(t, 3*time.Second, cfgs[2].MaxTime)
	assert.Equal(t, 250*time.Millisecond, cfgs[2].ReportingInterval)
	assert.Equal(t, 10*time.Second, cfgs[2].ReportingIntervalDBSpace)
}

func TestConfigurations_RejectsInvalidScenario(t *testing.T) {
	f := loadFile(t, `
benchmark:
  scenarios:
    - name: reads-without-seed
      readRate: 100
`)
	_, err := f.Configurations()
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "reads-without-seed")
}

func TestConfigurations_NoScenarios(t *testing.T) {
	f := loadFile(t, "benchmark:\n  numThreads: 2\n")
	_, err := f.Configurations()
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
