// Package source reads page-oriented documents (PDF files, single images or
// image directories) for storyboard import.
package source

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
)

type Source interface {
	Path() string
	PageCount() int
	PageSize(index int) (width, height float64, err error)
	RenderPage(index int, dpi int) (image.Image, error)
	Close() error
}

// Open picks the source kind from path: PDF files go through MuPDF,
// everything else is treated as images.
func Open(path string) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
		return NewPDFSource(path)
	}
	return NewImageSource(path)
}

func checkIndex(s Source, index int) error {
	if index < 0 || index >= s.PageCount() {
		return fmt.Errorf("page %d out of range [0, %d)", index, s.PageCount())
	}
	return nil
}
