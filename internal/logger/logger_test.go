package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"mailflow/backend/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("无效级别回退到 info", func(t *testing.T) {
		log, err := New(Options{Level: "verbose"})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("写入日志文件", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "logs", "mailflow.log")
		log, err := New(Options{Level: "debug", LogFile: file, MaxSize: 1})
		require.NoError(t, err)

		log.Info("hello")
		_ = log.Sync()
		assert.FileExists(t, file)
	})
}

func TestFromConfig(t *testing.T) {
	opts := FromConfig(config.LogConfig{Level: "warn", Development: true, File: "/tmp/x.log"})

	assert.Equal(t, "warn", opts.Level)
	assert.True(t, opts.Development)
	assert.Equal(t, "/tmp/x.log", opts.LogFile)
	assert.Equal(t, 100, opts.MaxSize)
}
