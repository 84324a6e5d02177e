package analyzer

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// page returns a white w×h page with black boxes.
func page(w, h int, boxes ...image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for _, b := range boxes {
		draw.Draw(img, b, image.NewUniform(color.Black), image.Point{}, draw.Src)
	}
	return img
}

func TestEdgeDetectorFindsBox(t *testing.T) {
	img := page(200, 200, image.Rect(50, 50, 150, 150))
	regions, err := NewEdgeDetector().Detect(img)
	require.NoError(t, err)
	require.Len(t, regions, 1)

	r := regions[0].Rect
	assert.True(t, r.Dx() >= 100 && r.Dy() >= 100, "region %v", r)
	assert.True(t, r.Overlaps(image.Rect(50, 50, 150, 150)))
	assert.Positive(t, regions[0].Pixels)
}

func TestEdgeDetectorBlankPage(t *testing.T) {
	regions, err := NewEdgeDetector().Detect(page(120, 80))
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestContentBounds(t *testing.T) {
	img := page(300, 200, image.Rect(40, 30, 100, 90), image.Rect(180, 120, 240, 170))

	got, err := ContentBounds(NewEdgeDetector(), img, 4)
	require.NoError(t, err)
	assert.True(t, got.In(img.Bounds()))
	assert.LessOrEqual(t, got.Min.X, 40-4)
	assert.LessOrEqual(t, got.Min.Y, 30-4)
	assert.GreaterOrEqual(t, got.Max.X, 240+4)
	assert.GreaterOrEqual(t, got.Max.Y, 170+4)
	assert.Less(t, got.Dx(), 300)

	whole, err := ContentBounds(nil, img, 4)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), whole)

	blank := page(50, 50)
	whole, err = ContentBounds(NewEdgeDetector(), blank, 4)
	require.NoError(t, err)
	assert.Equal(t, blank.Bounds(), whole)
}

func TestNewDetector(t *testing.T) {
	for _, v := range []string{"", "edges"} {
		d, err := NewDetector(v)
		require.NoError(t, err)
		assert.NotNil(t, d)
	}
	d, err := NewDetector("none")
	require.NoError(t, err)
	assert.Nil(t, d)
	_, err = NewDetector("ocr")
	assert.Error(t, err)
}
