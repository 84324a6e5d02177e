package archetypes

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ivlev/sequencer/internal/stream"
	"github.com/ivlev/sequencer/internal/timeline"
)

// Overrides is a timeline extension storing per-track parameter overrides,
// e.g. an emitter rate or a camera blend value changed for one scene. The
// header carries a scene label; the trailing table is keyed by track
// position and resolved once every track exists.
type Overrides struct {
	Label  string
	params map[timeline.TrackID]map[string]float32
}

func NewOverrides() *Overrides {
	return &Overrides{params: make(map[timeline.TrackID]map[string]float32)}
}

// Set records an override as one undoable timeline edit.
func (o *Overrides) Set(tl *timeline.Timeline, t *timeline.Track, param string, value float32) error {
	if t == nil {
		return timeline.ErrNilTrack
	}
	return tl.EditTimelineData("Set Override", func() error {
		m := o.params[t.ID()]
		if m == nil {
			m = make(map[string]float32)
			o.params[t.ID()] = m
		}
		m[param] = value
		return nil
	})
}

// Unset removes an override as one undoable timeline edit.
func (o *Overrides) Unset(tl *timeline.Timeline, t *timeline.Track, param string) error {
	if _, ok := o.Get(t, param); !ok {
		return nil
	}
	return tl.EditTimelineData("Remove Override", func() error {
		delete(o.params[t.ID()], param)
		if len(o.params[t.ID()]) == 0 {
			delete(o.params, t.ID())
		}
		return nil
	})
}

func (o *Overrides) Get(t *timeline.Track, param string) (float32, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := o.params[t.ID()][param]
	return v, ok
}

// Params returns a copy of the overrides of t.
func (o *Overrides) Params(t *timeline.Track) map[string]float32 {
	return maps.Clone(o.params[t.ID()])
}

func (o *Overrides) LoadTimelineData(version int32, r *stream.Reader) error {
	o.Label = ""
	o.params = make(map[timeline.TrackID]map[string]float32)
	if version >= 2 {
		o.Label = r.String()
	}
	return r.Err()
}

func (o *Overrides) SaveTimelineData(w *stream.Writer) error {
	w.String(o.Label)
	return nil
}

// LoadTimelineCustomData reads the override table. Legacy streams written
// before the table existed simply end after the tracks.
func (o *Overrides) LoadTimelineCustomData(version int32, tl *timeline.Timeline, r *stream.Reader) error {
	params := make(map[timeline.TrackID]map[string]float32)
	if version < timeline.CurrentVersion && r.Remaining() == 0 {
		o.params = params
		return nil
	}
	// rows and params take at least 8 bytes each
	n := int(r.Int32())
	if r.Err() == nil && (n < 0 || n > r.Remaining()/8) {
		return fmt.Errorf("override table: %w: row count %d", timeline.ErrCorruptStream, n)
	}
	for i := 0; i < n && r.Err() == nil; i++ {
		idx := int(r.Int32())
		count := int(r.Int32())
		if r.Err() != nil {
			break
		}
		t := tl.TrackAt(idx)
		if t == nil {
			return fmt.Errorf("override table: %w: track index %d", timeline.ErrCorruptStream, idx)
		}
		if count < 0 || count > r.Remaining()/8 {
			return fmt.Errorf("override table: %w: param count %d", timeline.ErrCorruptStream, count)
		}
		m := make(map[string]float32, count)
		for j := 0; j < count && r.Err() == nil; j++ {
			key := r.String()
			m[key] = r.Float32()
		}
		params[t.ID()] = m
	}
	if err := r.Err(); err != nil {
		return err
	}
	o.params = params
	return nil
}

// SaveTimelineCustomData writes overrides of live tracks in flat order.
// Overrides of removed tracks are dropped.
func (o *Overrides) SaveTimelineCustomData(tl *timeline.Timeline, w *stream.Writer) error {
	type row struct {
		index  int
		params map[string]float32
	}
	var rows []row
	for i, t := range tl.Tracks() {
		if m := o.params[t.ID()]; len(m) > 0 {
			rows = append(rows, row{index: i, params: m})
		}
	}
	w.Int32(int32(len(rows)))
	for _, rw := range rows {
		w.Int32(int32(rw.index))
		w.Int32(int32(len(rw.params)))
		for _, key := range slices.Sorted(maps.Keys(rw.params)) {
			w.String(key)
			w.Float32(rw.params[key])
		}
	}
	return nil
}
