package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/pkg/errors"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("QUIVER_TEST_HOST", "db.example.com")

	cases := map[string]string{
		"host: ${QUIVER_TEST_HOST}":            "host: db.example.com",
		"host: ${QUIVER_TEST_HOST:unused}":     "host: db.example.com",
		"host: ${QUIVER_TEST_ABSENT}":          "host: ",
		"host: ${QUIVER_TEST_ABSENT:fallback}": "host: fallback",
		"plain text":                           "plain text",
		"open ${QUIVER_TEST_HOST":              "open ${QUIVER_TEST_HOST",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExpandEnv(in), in)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiver.yaml")
	doc := `logging:
  level: ${QUIVER_TEST_LEVEL:debug}
  encoding: console
dataset:
  chunk_rows: 4096
memory:
  fraction: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Encoding)
	// Absent keys keep their defaults.
	assert.Equal(t, []string{"stdout"}, cfg.Logging.OutputPaths)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
	assert.Equal(t, 4096, cfg.Dataset.ChunkRows)
	assert.Equal(t, 0.25, cfg.Memory.Fraction)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: verbose\n"), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	bad := []*Config{
		{Logging: LoggingConfig{Level: "verbose"}},
		{Logging: LoggingConfig{Encoding: "xml"}},
		{Metrics: MetricsConfig{Enabled: true}},
		{Memory: MemoryConfig{Fraction: 1.5}},
		{Dataset: DatasetConfig{ChunkRows: -1}},
	}
	for i, cfg := range bad {
		err := cfg.Validate()
		require.Error(t, err, i)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), i)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiver.yaml")
	require.NoError(t, Save(path, Default()))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestMappings(t *testing.T) {
	cfg := Default()
	cfg.Logging.Development = true
	cfg.Memory = MemoryConfig{Fraction: 0.2, MinRows: 64, MaxRows: 1 << 16, DefaultRows: 2048}

	lc := cfg.LoggerConfig()
	assert.Equal(t, "info", lc.Level)
	assert.True(t, lc.Development)
	assert.Equal(t, []string{"stdout"}, lc.OutputPaths)

	ac := cfg.AdvisorConfig()
	assert.Equal(t, 0.2, ac.MemoryFraction)
	assert.Equal(t, 64, ac.MinRows)
	assert.Equal(t, 1<<16, ac.MaxRows)
	assert.Equal(t, 2048, ac.DefaultRows)
}
