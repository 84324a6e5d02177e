package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivlev/sequencer/internal/config"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)

	require.NoError(t, s.Put(ctx, "intro", []byte{4, 0, 0, 0, 1}))
	require.NoError(t, s.Put(ctx, "act-2", []byte{4, 0, 0, 0}))
	require.NoError(t, s.Put(ctx, "intro", []byte{4, 0, 0, 0, 1, 2}))

	data, err := s.Get(ctx, "intro")
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 0, 0, 0, 1, 2}, data)

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "act-2", infos[0].Name)
	assert.Equal(t, "intro", infos[1].Name)
	assert.EqualValues(t, 6, infos[1].Size)

	require.NoError(t, s.Delete(ctx, "act-2"))
	infos, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)

	for _, bad := range []string{"", "../escape", `a\b`, ".hidden"} {
		assert.ErrorIs(t, s.Put(ctx, bad, nil), ErrInvalidName, bad)
	}
	require.NoError(t, s.Close())
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "timelines")
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	exerciseStore(t, s)
}

func TestSQLStore(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := NewSQLStore(dsn, zap.NewNop())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestNewSelectsKind(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, config.StoreConfig{Kind: "file", Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = New(ctx, config.StoreConfig{Kind: "tape"}, nil)
	assert.ErrorContains(t, err, "tape")
}
