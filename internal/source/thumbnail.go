package source

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/ivlev/sequencer/internal/analyzer"
	"github.com/ivlev/sequencer/internal/system"
)

func thumbSize(b image.Rectangle, width int) image.Rectangle {
	return image.Rect(0, 0, width, max(b.Dy()*width/b.Dx(), 1))
}

// Thumbnail scales img to width pixels, keeping the aspect ratio.
func Thumbnail(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() == 0 {
		return img
	}
	dst := image.NewRGBA(thumbSize(b, width))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// ThumbOptions controls WriteThumbnails. With a Trim detector each page
// is cropped to its content plus Margin pixels before scaling.
type ThumbOptions struct {
	Width  int
	DPI    int
	Trim   analyzer.Detector
	Margin int
}

// WriteThumbnails renders every page of src and writes page_NNN.png files
// of the given width into dir.
func WriteThumbnails(src Source, dir string, opts ThumbOptions) ([]string, error) {
	if opts.Width <= 0 {
		return nil, fmt.Errorf("thumbnail width %d", opts.Width)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var out []string
	for i := 0; i < src.PageCount(); i++ {
		img, err := src.RenderPage(i, opts.DPI)
		if err != nil {
			return out, fmt.Errorf("render page %d: %w", i, err)
		}
		b := img.Bounds()
		if b.Empty() {
			return out, fmt.Errorf("page %d is empty", i)
		}
		if b, err = analyzer.ContentBounds(opts.Trim, img, opts.Margin); err != nil {
			return out, fmt.Errorf("analyze page %d: %w", i, err)
		}
		canvas := system.GetImage(thumbSize(b, opts.Width))
		draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, b, draw.Src, nil)

		path := filepath.Join(dir, fmt.Sprintf("page_%03d.png", i+1))
		err = writePNG(path, canvas)
		system.PutImage(canvas)
		if err != nil {
			return out, err
		}
		out = append(out, path)
	}
	return out, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
