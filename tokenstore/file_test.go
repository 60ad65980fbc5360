package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")

	require.NoError(t, NewFile(path).Set(ctx, "k", "v", time.Hour))

	value, ok, err := NewFile(path).Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())
}

func TestFile_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewFile(filepath.Join(t.TempDir(), "tokens.json"))
	store.Now = clock.Now

	require.NoError(t, store.Set(ctx, "short", "v", time.Minute))
	require.NoError(t, store.Set(ctx, "long", "v", time.Hour))

	clock.Advance(2 * time.Minute)

	_, ok, err := store.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	// The next write prunes expired entries.
	require.NoError(t, store.Set(ctx, "other", "v", time.Hour))
	contents, err := store.read()
	require.NoError(t, err)
	assert.NotContains(t, contents.Tokens, "short")
	assert.Contains(t, contents.Tokens, "long")
}

func TestFile_NonPositiveTTLDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewFile(filepath.Join(t.TempDir(), "tokens.json"))

	require.NoError(t, store.Set(ctx, "k", "v", time.Hour))
	require.NoError(t, store.Set(ctx, "k", "", 0))

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFile_MissingAndEmptyFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	_, ok, err := NewFile(path).Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, nil, 0600))
	_, ok, err = NewFile(path).Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, _, err := NewFile(path).Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestDefaultFilePath(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		assert.Equal(t, filepath.Join("/tmp/xdg", "lark-kit", "tokens.json"), DefaultFilePath())
	})

	t.Run("falls back to ~/.config", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", home)
		assert.Equal(t, filepath.Join(home, ".config", "lark-kit", "tokens.json"), DefaultFilePath())
	})
}
