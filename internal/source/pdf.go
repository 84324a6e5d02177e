package source

import (
	"image"

	"github.com/gen2brain/go-fitz"
)

type PDFSource struct {
	doc  *fitz.Document
	path string
}

func NewPDFSource(path string) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return &PDFSource{doc: doc, path: path}, nil
}

func (f *PDFSource) Path() string { return f.path }

func (f *PDFSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *PDFSource) PageSize(index int) (float64, float64, error) {
	if err := checkIndex(f, index); err != nil {
		return 0, 0, err
	}
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

// RenderPage opens its own document handle so pages can render from
// several goroutines.
func (f *PDFSource) RenderPage(index int, dpi int) (image.Image, error) {
	if err := checkIndex(f, index); err != nil {
		return nil, err
	}
	doc, err := fitz.New(f.path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.ImageDPI(index, float64(dpi))
}

func (f *PDFSource) Close() error {
	return f.doc.Close()
}
