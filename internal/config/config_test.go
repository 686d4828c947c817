package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ".wbr", cfg.ReplaySuffix)
	assert.Equal(t, 3, cfg.BoardMin)
	assert.Equal(t, 15, cfg.BoardMax)
	assert.Equal(t, time.Second, cfg.PlaybackDelay)
}

func TestParseRejectsInvertedBounds(t *testing.T) {
	t.Setenv("WBR_BOARD_MIN", "10")
	t.Setenv("WBR_BOARD_MAX", "4")

	_, err := Parse()
	require.Error(t, err)
}

func TestParseError(t *testing.T) {
	t.Setenv("WBR_SCAN_WORKERS", "many")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("WBR_TEST_ONLY=1\nWBR_REPLAY_SUFFIX=.replay\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("WBR_TEST_ONLY")
		os.Unsetenv("WBR_REPLAY_SUFFIX")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ".replay", cfg.ReplaySuffix)
}

func TestLoadMissingFileIsOptional(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestDerivedOptions(t *testing.T) {
	t.Setenv("WBR_BOARD_MIN", "4")
	t.Setenv("WBR_BOARD_MAX", "9")
	t.Setenv("WBR_SCAN_WORKERS", "0")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Limits().Min)
	assert.Equal(t, 9, cfg.Limits().Max)

	opts := cfg.ScanOptions()
	assert.Equal(t, ".wbr", opts.Suffix)
	assert.Equal(t, 1, opts.Workers)
	assert.Equal(t, cfg.Limits(), opts.Limits)
}
