package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pseudobench/internal/config"
)

func restoreLogger(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})
}

func TestConfigure_JSONToWriter(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	closer, err := Configure(config.Logging{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	WithComponent("driver").Debug("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "driver", entry["component"])
	assert.Equal(t, "debug", entry["level"])
}

func TestConfigure_LevelFilters(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	_, err := Configure(config.Logging{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info("dropped")
	assert.Empty(t, buf.String())
	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestConfigure_File(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "bench.log")
	closer, err := Configure(config.Logging{Level: "info", Format: "text", File: path}, nil)
	require.NoError(t, err)

	log.Info("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestConfigure_Invalid(t *testing.T) {
	restoreLogger(t)
	_, err := Configure(config.Logging{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = Configure(config.Logging{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
