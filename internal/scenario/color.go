package scenario

import (
	"fmt"
	"image/color"
	"sort"
	"strings"

	"golang.org/x/image/colornames"
)

var colorNames = func() map[color.RGBA]string {
	names := make([]string, 0, len(colornames.Map))
	for name := range colornames.Map {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(map[color.RGBA]string, len(names))
	for _, name := range names {
		c := colornames.Map[name]
		if _, ok := out[c]; !ok {
			out[c] = name
		}
	}
	return out
}()

// FormatColor returns the SVG color name of c when it has one, else
// #rrggbb or #rrggbbaa.
func FormatColor(c color.RGBA) string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseColor accepts SVG color names and #rgb, #rrggbb and #rrggbbaa.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.RGBA{}, fmt.Errorf("unknown color %q", s)
	}
	c := color.RGBA{A: 0xff}
	var err error
	switch len(hex) {
	case 3:
		_, err = fmt.Sscanf(hex, "%1x%1x%1x", &c.R, &c.G, &c.B)
		c.R, c.G, c.B = c.R*17, c.G*17, c.B*17
	case 6:
		_, err = fmt.Sscanf(hex, "%02x%02x%02x", &c.R, &c.G, &c.B)
	case 8:
		_, err = fmt.Sscanf(hex, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		return color.RGBA{}, fmt.Errorf("bad color %q", s)
	}
	if err != nil {
		return color.RGBA{}, fmt.Errorf("bad color %q: %w", s, err)
	}
	return c, nil
}
