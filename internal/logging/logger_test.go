package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"turnover/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testApp = config.AppConfig{Name: "turnover", Environment: "test", Version: "1.0.0"}

func TestNew_Outputs(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.LoggingConfig
		wantCloser bool
	}{
		{"Default", config.LoggingConfig{}, false},
		{"Stdout", config.LoggingConfig{Level: "info", Output: "stdout"}, false},
		{"Stderr", config.LoggingConfig{Level: "debug", Output: "STDERR"}, false},
		{"Console", config.LoggingConfig{Level: "warn", Format: "console"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, closer, err := New(tt.cfg, testApp)
			require.NoError(t, err)
			assert.NotNil(t, logger)
			assert.Equal(t, tt.wantCloser, closer != nil)
		})
	}
}

func TestNew_File(t *testing.T) {
	for _, output := range []string{"file", "both"} {
		t.Run(output, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "turnover.log")
			logger, closer, err := New(config.LoggingConfig{Output: output, FilePath: path}, testApp)
			require.NoError(t, err)
			require.NotNil(t, closer)

			logger.Info().Str("account", "A1").Msg("sync finished")
			require.NoError(t, closer.Close())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			line := string(data)
			assert.Contains(t, line, `"account":"A1"`)
			assert.Contains(t, line, `"app":"turnover"`)
			assert.Contains(t, line, `"env":"test"`)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Output: "file"}, testApp)
	assert.Error(t, err)

	_, _, err = New(config.LoggingConfig{Output: "syslog"}, testApp)
	assert.Error(t, err)
}

func TestNew_Level(t *testing.T) {
	logger, _, err := New(config.LoggingConfig{Level: "nonsense"}, testApp)
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger, _, err = New(config.LoggingConfig{Level: " Error "}, testApp)
	require.NoError(t, err)
	assert.Equal(t, zerolog.ErrorLevel, logger.GetLevel())
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf).With().Str("app", "turnover").Logger()

	Component(&base, "sync").Info().Msg("hello")

	out := strings.TrimSpace(buf.String())
	assert.Contains(t, out, `"component":"sync"`)
	assert.Contains(t, out, `"app":"turnover"`)
}
