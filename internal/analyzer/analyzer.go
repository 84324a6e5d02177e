// Package analyzer finds the content regions of rendered document pages.
package analyzer

import (
	"fmt"
	"image"
	"image/draw"
)

// Region is a connected area of page content.
type Region struct {
	Rect image.Rectangle
	// Pixels is the number of edge pixels in the region after dilation.
	Pixels int
}

// Detector finds content regions in a page image.
type Detector interface {
	Detect(img image.Image) ([]Region, error)
}

// NewDetector returns the detector for variant. "none" returns nil, which
// callers treat as "keep the whole page".
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "edges", "":
		return NewEdgeDetector(), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown detector %q", variant)
}

// ContentBounds is the union of the regions found in img, grown by margin
// pixels and clipped to the image. With no regions it is the whole image.
func ContentBounds(d Detector, img image.Image, margin int) (image.Rectangle, error) {
	b := img.Bounds()
	if d == nil {
		return b, nil
	}
	regions, err := d.Detect(img)
	if err != nil {
		return b, err
	}
	if len(regions) == 0 {
		return b, nil
	}
	var u image.Rectangle
	for _, r := range regions {
		u = u.Union(r.Rect)
	}
	return u.Inset(-margin).Intersect(b), nil
}

// EdgeDetector marks strong gradients with a Sobel operator, joins them by
// dilation and reports the bounding boxes of the connected areas.
type EdgeDetector struct {
	MinArea   int     // px²
	Threshold float64 // gradient magnitude
	Radius    int     // dilation radius
	Passes    int     // dilation passes
}

func NewEdgeDetector() *EdgeDetector {
	return &EdgeDetector{MinArea: 500, Threshold: 30, Radius: 2, Passes: 2}
}

func (d *EdgeDetector) Detect(img image.Image) ([]Region, error) {
	b := img.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return nil, nil
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

	mask := d.edges(gray)
	for i := 0; i < d.Passes; i++ {
		mask = dilate(mask, d.Radius)
	}

	var out []Region
	for _, r := range components(mask) {
		if r.Rect.Dx()*r.Rect.Dy() < d.MinArea {
			continue
		}
		r.Rect = r.Rect.Add(b.Min)
		out = append(out, r)
	}
	return out, nil
}

// bitmap is a binary image.
type bitmap struct {
	w, h int
	pix  []bool
}

func newBitmap(w, h int) *bitmap { return &bitmap{w: w, h: h, pix: make([]bool, w*h)} }

func (m *bitmap) at(x, y int) bool { return m.pix[y*m.w+x] }

func (d *EdgeDetector) edges(g *image.Gray) *bitmap {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	m := newBitmap(w, h)
	px := func(x, y int) float64 { return float64(g.Pix[y*g.Stride+x]) }
	limit := d.Threshold * d.Threshold
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := px(x+1, y-1) + 2*px(x+1, y) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x-1, y) - px(x-1, y+1)
			gy := px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1)
			m.pix[y*w+x] = gx*gx+gy*gy > limit
		}
	}
	return m
}

func dilate(m *bitmap, radius int) *bitmap {
	out := newBitmap(m.w, m.h)
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if !m.at(x, y) {
				continue
			}
			for yy := max(y-radius, 0); yy <= min(y+radius, m.h-1); yy++ {
				for xx := max(x-radius, 0); xx <= min(x+radius, m.w-1); xx++ {
					out.pix[yy*m.w+xx] = true
				}
			}
		}
	}
	return out
}

// components flood fills the set pixels of m, four-connected.
func components(m *bitmap) []Region {
	seen := make([]bool, len(m.pix))
	var out []Region
	var stack []image.Point
	for i, set := range m.pix {
		if !set || seen[i] {
			continue
		}
		start := image.Pt(i%m.w, i/m.w)
		r := Region{Rect: image.Rectangle{Min: start, Max: start.Add(image.Pt(1, 1))}}
		seen[i] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			r.Pixels++
			r.Rect = r.Rect.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
			for _, n := range [...]image.Point{image.Pt(p.X+1, p.Y), image.Pt(p.X-1, p.Y), image.Pt(p.X, p.Y+1), image.Pt(p.X, p.Y-1)} {
				if n.X < 0 || n.Y < 0 || n.X >= m.w || n.Y >= m.h {
					continue
				}
				j := n.Y*m.w + n.X
				if m.pix[j] && !seen[j] {
					seen[j] = true
					stack = append(stack, n)
				}
			}
		}
		out = append(out, r)
	}
	return out
}

