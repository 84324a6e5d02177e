package archetypes

import (
	"github.com/ivlev/sequencer/internal/stream"
	"github.com/ivlev/sequencer/internal/timeline"
)

// Cue is the payload of one event media.
type Cue struct {
	Name  string
	Value float32
}

// EventState is the per-track cache refreshed on every seek.
type EventState struct {
	Active string
}

// Event is a track of named cues, e.g. scene triggers or particle bursts.
type Event struct{}

func (Event) TypeID() uint8 { return EventTypeID }
func (Event) Name() string  { return "Event" }

func (Event) Create(t *timeline.Track, opts timeline.CreateOptions) error {
	t.Data = &EventState{}
	if opts.Duration <= 0 {
		return nil
	}
	m := timeline.NewMedia(opts.Start, opts.Duration)
	m.Data = &Cue{Name: opts.Title}
	return t.AddMedia(m)
}

// Load reads the media list followed by one cue per media. Cue values
// were added in version 3.
func (Event) Load(version int32, t *timeline.Track, r *stream.Reader) error {
	media, err := timeline.ReadMediaList(r)
	if err != nil {
		return err
	}
	for _, m := range media {
		c := &Cue{Name: r.String()}
		if version >= 3 {
			c.Value = r.Float32()
		}
		m.Data = c
		if err := t.AddMedia(m); err != nil {
			return err
		}
	}
	return r.Err()
}

func (Event) Save(t *timeline.Track, w *stream.Writer) error {
	media := t.Media()
	timeline.WriteMediaList(w, media)
	for _, m := range media {
		c := CueOf(m)
		w.String(c.Name)
		w.Float32(c.Value)
	}
	return nil
}

// SplitMedia gives the second half its own copy of the cue.
func (Event) SplitMedia(original, created *timeline.Media) {
	c := *CueOf(original)
	created.Data = &c
}

func (Event) OnTimelineCurrentFrameChanged(t *timeline.Track, frame int) {
	st, ok := t.Data.(*EventState)
	if !ok {
		st = &EventState{}
		t.Data = st
	}
	st.Active = ""
	if m := t.MediaAt(frame); m != nil {
		st.Active = CueOf(m).Name
	}
}

// CueOf returns the cue of m, or an empty one.
func CueOf(m *timeline.Media) *Cue {
	if c, ok := m.Data.(*Cue); ok && c != nil {
		return c
	}
	return &Cue{}
}
