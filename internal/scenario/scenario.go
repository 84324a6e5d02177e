// Package scenario converts timelines to and from a human-editable YAML
// document.
package scenario

// DocumentVersion is written to every exported document.
const DocumentVersion = "1.0"

// Document is a complete timeline in readable form.
type Document struct {
	Version  string  `yaml:"version"`
	FPS      float64 `yaml:"fps"`
	Duration int     `yaml:"duration"` // frames
	Tracks   []Track `yaml:"tracks"`
}

// Track is one track with its subtree. Payload carries the archetype state
// exactly; Media is informative unless Payload is empty.
type Track struct {
	Type     string  `yaml:"type"`
	Name     string  `yaml:"name"`
	Title    string  `yaml:"title,omitempty"`
	Mute     bool    `yaml:"mute,omitempty"`
	Loop     bool    `yaml:"loop,omitempty"`
	Color    string  `yaml:"color,omitempty"`
	Media    []Media `yaml:"media,omitempty"`
	Payload  []byte  `yaml:"payload,omitempty"`
	Children []Track `yaml:"children,omitempty"`
}

type Media struct {
	Start    int     `yaml:"start"`
	Duration int     `yaml:"duration"`
	Seconds  float64 `yaml:"seconds,omitempty"` // start time, informative
}

// Count returns the number of tracks in the document.
func (d *Document) Count() int {
	var n int
	var walk func([]Track)
	walk = func(ts []Track) {
		for _, t := range ts {
			n++
			walk(t.Children)
		}
	}
	walk(d.Tracks)
	return n
}
