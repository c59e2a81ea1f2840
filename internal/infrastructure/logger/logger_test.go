package logger

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"realtime_chat_server/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitWritesToFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.LogConfig{LogPath: dir, Level: "debug"}
	require.NoError(t, Init(cfg, "release"))

	zap.L().Info("logger ready", zap.String("component", "test"))
	_ = zap.L().Sync()

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "logger ready")
}

func TestInitRejectsBadLevel(t *testing.T) {
	err := Init(&config.LogConfig{LogPath: t.TempDir(), Level: "loud"}, "release")
	assert.Error(t, err)
}

func TestRedactQuery(t *testing.T) {
	assert.Equal(t, "a=1&token=***", redactQuery("a=1&token=secret"))
	assert.Equal(t, "a=1", redactQuery("a=1"))
}

func TestIsBrokenPipeError(t *testing.T) {
	opErr := &net.OpError{Op: "write", Err: os.NewSyscallError("write", syscall.EPIPE)}
	assert.True(t, isBrokenPipeError(opErr))
	assert.False(t, isBrokenPipeError(errors.New("timeout")))
	assert.False(t, isBrokenPipeError(nil))
}
