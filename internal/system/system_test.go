package system

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "old.seq"), now.Add(-2*time.Hour))
	touch(t, filepath.Join(dir, "new.SEQ"), now.Add(-time.Hour))
	touch(t, filepath.Join(dir, "newest.pdf"), now)

	got, err := FindLatestTimeline(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "new.SEQ"), got)

	got, err = FindLatestDocument(filepath.Join(dir, "old.seq"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "newest.pdf"), got)

	_, err = FindLatest(dir, ".wav")
	assert.ErrorContains(t, err, ".wav")
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "a.seq"), now)
	touch(t, filepath.Join(dir, "nested", "b.seq"), now)
	touch(t, filepath.Join(dir, "nested", "c.txt"), now)

	files, err := ListFiles(dir, TimelineExts...)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.seq"), filepath.Join(dir, "nested", "b.seq")}, files)
}

func TestImagePoolReusesBySize(t *testing.T) {
	p := NewImagePool()
	img := p.Get(image.Rect(10, 10, 30, 20))
	assert.Equal(t, image.Rect(10, 10, 30, 20), img.Bounds())
	assert.Len(t, img.Pix, 20*10*4)
	p.Put(img)
	p.Put(image.NewRGBA(image.Rect(0, 0, 3, 3)))

	again := p.Get(image.Rect(0, 0, 20, 10))
	assert.Equal(t, image.Rect(0, 0, 20, 10), again.Bounds())
}

func TestSampleAndLimits(t *testing.T) {
	res, err := Sample(context.Background(), 0)
	require.NoError(t, err)
	assert.Positive(t, res.NumCPU)
	assert.Positive(t, res.Goroutines)
	assert.Contains(t, res.String(), "Goroutines")

	assert.Positive(t, InitResourceLimits(64, zap.NewNop()))
}
