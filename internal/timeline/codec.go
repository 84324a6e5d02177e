package timeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ivlev/sequencer/internal/stream"
)

// CurrentVersion is the format version written by Save.
const CurrentVersion int32 = 4

// MinVersion is the oldest format version Load accepts.
const MinVersion int32 = 1

// Save serializes the timeline in the current format version.
func (tl *Timeline) Save() ([]byte, error) {
	data, err := tl.encode()
	if err != nil {
		return nil, err
	}
	tl.log.Debug("timeline saved", zap.Int("tracks", len(tl.flat)), zap.Int("bytes", len(data)))
	return data, nil
}

func (tl *Timeline) encode() ([]byte, error) {
	tl.lock()
	defer tl.unlock()

	w := stream.NewWriter()
	w.Int32(CurrentVersion)
	w.Float32(tl.fps)
	w.Int32(int32(tl.duration))
	if tl.ext != nil {
		if err := tl.ext.SaveTimelineData(w); err != nil {
			return nil, fmt.Errorf("save timeline data: %w", err)
		}
	}

	pos := make(map[TrackID]int32, len(tl.flat))
	for i, id := range tl.flat {
		pos[id] = int32(i)
	}

	w.Int32(int32(len(tl.flat)))
	for i, id := range tl.flat {
		t := tl.tracks[id]
		parent := int32(-1)
		if t.parent != NoTrack {
			parent = pos[t.parent]
		}
		w.Byte(t.archetype.TypeID())
		w.Byte(byte(t.Flags))
		w.Int32(parent)
		w.Int32(int32(len(t.children)))
		w.String(t.name)
		w.Color(t.Color)
		if err := t.archetype.Save(t, w); err != nil {
			return nil, fmt.Errorf("save track %d (%s): %w", i, t.name, err)
		}
	}

	if tl.ext != nil {
		if err := tl.ext.SaveTimelineCustomData(tl, w); err != nil {
			return nil, fmt.Errorf("save timeline custom data: %w", err)
		}
	}
	if err := w.Err(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Load replaces the content of the timeline with data. Versions 1 through
// CurrentVersion are accepted. On error the timeline keeps its prior state.
// A loaded timeline is not modified and has an empty selection.
func (tl *Timeline) Load(data []byte) error {
	if err := tl.guard("load"); err != nil {
		return err
	}

	var extState []byte
	if tl.ext != nil {
		var err error
		if extState, err = tl.saveExtension(); err != nil {
			return fmt.Errorf("snapshot extension: %w", err)
		}
	}

	staging := tl.stage()
	version, err := staging.decode(data)
	if err != nil {
		if tl.ext != nil {
			if rerr := tl.restoreExtension(extState); rerr != nil {
				tl.log.Error("restore extension after failed load", zap.Error(rerr))
			}
		}
		tl.log.Warn("load failed", zap.Int32("version", version), zap.Error(err))
		return err
	}

	tl.adopt(staging)
	tl.log.Info("timeline loaded",
		zap.Int32("version", version),
		zap.Int("tracks", len(tl.flat)),
		zap.Float64("fps", tl.FPS()),
		zap.Int("duration", tl.duration),
	)
	return nil
}

// PeekVersion returns the format version of a serialized timeline without
// decoding the rest.
func PeekVersion(data []byte) (int32, error) {
	r := stream.NewReader(data)
	v := r.Int32()
	if err := r.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorruptStream, err)
	}
	return v, nil
}

// stage returns an empty timeline that shares registry, logger and extension
// and allocates ids after the ones already used here.
func (tl *Timeline) stage() *Timeline {
	s := New(tl.registry, WithLogger(tl.log), WithExtension(tl.ext))
	s.nextID = tl.nextID
	return s
}

func (tl *Timeline) adopt(s *Timeline) {
	tl.begin()
	defer tl.end()

	for _, t := range tl.tracks {
		t.timeline = nil
	}
	tl.tracks = s.tracks
	tl.flat = s.flat
	tl.nextID = max(tl.nextID, s.nextID)
	for _, t := range tl.tracks {
		t.timeline = tl
	}
	tl.fps = s.fps
	tl.duration = s.duration
	tl.current = 0
	tl.pending = nil
	clear(tl.selTracks)
	clear(tl.selMedia)
	tl.modified = false
	tl.enqueue(Event{Kind: Loaded, Track: NoTrack})
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptStream, fmt.Sprintf(format, args...))
}

// decode fills an empty timeline from data.
func (tl *Timeline) decode(data []byte) (int32, error) {
	tl.lock()
	defer tl.unlock()

	r := stream.NewReader(data)
	version := r.Int32()
	if err := r.Err(); err != nil {
		return 0, corrupt("header: %v", err)
	}
	if version < MinVersion || version > CurrentVersion {
		return version, &UnsupportedVersionError{Version: version}
	}

	fps := r.Float32()
	duration := r.Int32()
	if err := r.Err(); err != nil {
		return version, corrupt("header: %v", err)
	}
	tl.fps = clampFPS(float64(fps))
	tl.duration = max(int(duration), 1)

	if tl.ext != nil {
		if err := tl.ext.LoadTimelineData(version, r); err != nil {
			return version, fmt.Errorf("load timeline data: %w", err)
		}
	}

	count := int(r.Int32())
	if err := r.Err(); err != nil {
		return version, corrupt("track count: %v", err)
	}
	if count < 0 || count > r.Remaining() {
		return version, corrupt("track count %d", count)
	}

	for i := 0; i < count; i++ {
		if err := tl.decodeTrack(version, i, r); err != nil {
			return version, err
		}
	}

	if err := tl.resolveParents(); err != nil {
		return version, err
	}

	for _, id := range tl.flat {
		t := tl.tracks[id]
		if h, ok := t.archetype.(LoadedHook); ok {
			h.OnLoaded(t)
		}
	}

	if tl.ext != nil {
		if err := tl.ext.LoadTimelineCustomData(version, tl, r); err != nil {
			return version, fmt.Errorf("load timeline custom data: %w", err)
		}
	}
	if err := r.Err(); err != nil {
		return version, corrupt("%v", err)
	}
	if n := r.Remaining(); n > 0 {
		tl.log.Warn("trailing bytes after timeline", zap.Int("bytes", n))
	}
	return version, nil
}

func (tl *Timeline) decodeTrack(version int32, index int, r *stream.Reader) error {
	typeID := r.Byte()
	var (
		flags  TrackFlags
		parent int32
		name   string
		col    = DefaultTrackColor
	)
	switch version {
	case 1:
		if r.Byte() != 0 {
			flags = FlagMute
		}
		parent = r.Int32()
		r.Int32()
		name = r.String()
	default:
		flags = TrackFlags(r.Byte())
		parent = r.Int32()
		r.Int32() // child count, derived from parent links
		name = r.String()
		col = r.Color()
	}
	if err := r.Err(); err != nil {
		return corrupt("track %d: %v", index, err)
	}

	arch, ok := tl.registry.Lookup(typeID)
	if !ok {
		return &UnknownTrackTypeError{TypeID: typeID, Index: index}
	}
	t, err := tl.construct(arch, tl.allocID(), tl.uniqueName(name, nil))
	if err != nil {
		return fmt.Errorf("track %d: %w", index, err)
	}
	t.Flags = flags
	t.Color = col
	t.loadParent = parent
	tl.attach(t)
	tl.flat = append(tl.flat, t.id)

	err = arch.Load(version, t, r)
	if rerr := r.Err(); rerr != nil {
		return corrupt("track %d (%s) payload: %v", index, t.name, rerr)
	}
	if err != nil {
		return fmt.Errorf("load track %d (%s): %w", index, t.name, err)
	}
	return nil
}

// resolveParents turns the stashed parent positions into links. Forward
// references are allowed; out of range, self and cyclic links are not.
func (tl *Timeline) resolveParents() error {
	n := int32(len(tl.flat))
	for i, id := range tl.flat {
		t := tl.tracks[id]
		p := t.loadParent
		t.loadParent = -1
		switch {
		case p < 0:
			t.parent = NoTrack
		case p >= n || p == int32(i):
			return corrupt("track %d: parent index %d", i, p)
		default:
			t.parent = tl.flat[p]
		}
	}
	for i, id := range tl.flat {
		steps := 0
		for p := tl.tracks[id].parent; p != NoTrack; p = tl.tracks[p].parent {
			if steps++; steps > len(tl.flat) {
				return corrupt("track %d: parent cycle", i)
			}
		}
	}
	tl.rebuildChildren()
	return nil
}

func (tl *Timeline) saveExtension() ([]byte, error) {
	tl.lock()
	defer tl.unlock()
	w := stream.NewWriter()
	if err := tl.ext.SaveTimelineData(w); err != nil {
		return nil, err
	}
	if err := tl.ext.SaveTimelineCustomData(tl, w); err != nil {
		return nil, err
	}
	return w.Bytes(), w.Err()
}

func (tl *Timeline) restoreExtension(data []byte) error {
	tl.lock()
	defer tl.unlock()
	r := stream.NewReader(data)
	if err := tl.ext.LoadTimelineData(CurrentVersion, r); err != nil {
		return err
	}
	if err := tl.ext.LoadTimelineCustomData(CurrentVersion, tl, r); err != nil {
		return err
	}
	return r.Err()
}

// Media capability bits in the media list encoding.
const (
	mediaCanSplit = 1 << iota
	mediaCanDelete
	mediaCanResize
)

// WriteMediaList encodes media ranges and capabilities. Archetypes that
// keep per-media data write it after the list in the same order.
func WriteMediaList(w *stream.Writer, media []*Media) {
	w.Int32(int32(len(media)))
	for _, m := range media {
		w.Int32(int32(m.start))
		w.Int32(int32(m.duration))
		var caps byte
		if m.CanSplit {
			caps |= mediaCanSplit
		}
		if m.CanDelete {
			caps |= mediaCanDelete
		}
		if m.CanResize {
			caps |= mediaCanResize
		}
		w.Byte(caps)
	}
}

// ReadMediaList decodes a list written by WriteMediaList. The returned
// media are unowned.
func ReadMediaList(r *stream.Reader) ([]*Media, error) {
	n := int(r.Int32())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if n < 0 || n > r.Remaining()/9 {
		return nil, corrupt("media count %d", n)
	}
	out := make([]*Media, 0, n)
	for i := 0; i < n; i++ {
		start := int(r.Int32())
		duration := int(r.Int32())
		caps := r.Byte()
		m := NewMedia(start, duration)
		m.CanSplit = caps&mediaCanSplit != 0
		m.CanDelete = caps&mediaCanDelete != 0
		m.CanResize = caps&mediaCanResize != 0
		out = append(out, m)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadMedia reads a media list and hands every media to t.
func LoadMedia(t *Track, r *stream.Reader) error {
	media, err := ReadMediaList(r)
	if err != nil {
		return err
	}
	for _, m := range media {
		if err := t.AddMedia(m); err != nil {
			return err
		}
	}
	return nil
}
