package nativelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRollsOverDaily(t *testing.T) {
	dir := t.TempDir()
	clk := clockwork.NewFakeClockAt(time.Date(2025, 4, 15, 23, 59, 0, 0, time.UTC))
	w, err := NewWriter(dir, clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	a, err := os.ReadFile(filepath.Join(dir, "moody_2025-04-15.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(a))
	b, err := os.ReadFile(filepath.Join(dir, "moody_2025-04-16.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(b))
}

func TestResolveDir(t *testing.T) {
	assert.Equal(t, "custom", ResolveDir(" custom "))
	t.Setenv(EnvLogDir, "/var/log/moody")
	assert.Equal(t, "/var/log/moody", ResolveDir(""))
}

func TestNewZapLoggerProductionWritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewZapLogger(true, dir)
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
