package archetypes

import (
	"path/filepath"
	"strings"

	"github.com/ivlev/sequencer/internal/stream"
	"github.com/ivlev/sequencer/internal/timeline"
)

// Board is the track data of a storyboard: the document its panels were
// imported from.
type Board struct {
	Source string
	DPI    int32
}

// Panel is one storyboard page placed on the timeline.
type Panel struct {
	Page   int32
	Width  float32
	Height float32
}

// Storyboard is a track of document pages (PDF pages or images), one media
// per page. Panels can not be split.
type Storyboard struct{}

func (Storyboard) TypeID() uint8 { return StoryboardTypeID }
func (Storyboard) Name() string  { return "Storyboard" }

func (Storyboard) Create(t *timeline.Track, _ timeline.CreateOptions) error {
	t.Data = &Board{DPI: 72}
	t.Icon = "storyboard"
	return nil
}

func (Storyboard) Load(version int32, t *timeline.Track, r *stream.Reader) error {
	b := &Board{Source: r.String(), DPI: r.Int32()}
	t.Data = b
	media, err := timeline.ReadMediaList(r)
	if err != nil {
		return err
	}
	for _, m := range media {
		m.Data = &Panel{Page: r.Int32(), Width: r.Float32(), Height: r.Float32()}
		if err := t.AddMedia(m); err != nil {
			return err
		}
	}
	return r.Err()
}

func (Storyboard) Save(t *timeline.Track, w *stream.Writer) error {
	b := BoardOf(t)
	w.String(b.Source)
	w.Int32(b.DPI)
	media := t.Media()
	timeline.WriteMediaList(w, media)
	for _, m := range media {
		p, _ := m.Data.(*Panel)
		if p == nil {
			p = &Panel{}
		}
		w.Int32(p.Page)
		w.Float32(p.Width)
		w.Float32(p.Height)
	}
	return nil
}

// OnLoaded titles untitled storyboards after their source document.
func (Storyboard) OnLoaded(t *timeline.Track) {
	if t.Title != "" {
		return
	}
	if src := BoardOf(t).Source; src != "" {
		t.Title = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}
}

// BoardOf returns the storyboard data of t, or an empty board.
func BoardOf(t *timeline.Track) *Board {
	if b, ok := t.Data.(*Board); ok && b != nil {
		return b
	}
	return &Board{}
}
