package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewWithoutOutputsIsNop(t *testing.T) {
	logger, err := New(Options{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewWritesToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "dirstat.log")
	logger, err := New(Options{Level: "debug", File: logFile})
	require.NoError(t, err)
	logger.Debug("scan started")
	_ = logger.Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scan started")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud", Console: true})
	assert.Error(t, err)
}
