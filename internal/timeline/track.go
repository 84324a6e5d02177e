package timeline

import (
	"image/color"
	"slices"
)

// TrackID addresses a track inside its timeline's arena. New tracks get
// fresh ids; an id is only reused when an undo snapshot re-creates the
// track that held it.
type TrackID int32

// NoTrack is the parent id of root tracks.
const NoTrack TrackID = -1

// UnboundedMedia disables the upper media count limit.
const UnboundedMedia = -1

// TrackFlags is the persisted flag byte of a track.
type TrackFlags uint8

const (
	FlagMute TrackFlags = 1 << iota
	FlagLoop
)

// DefaultTrackColor is assigned to tracks loaded from streams without color.
var DefaultTrackColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// Track is a named node of the timeline tree. It owns its media and is
// linked to its parent and children by id.
type Track struct {
	id        TrackID
	timeline  *Timeline
	archetype Archetype

	name  string
	Title string
	Icon  string
	Color color.RGBA
	Flags TrackFlags

	MinMediaCount int
	MaxMediaCount int

	parent   TrackID
	children []TrackID
	media    []*Media

	// Data holds archetype-specific state.
	Data any

	loadParent int32
}

func newTrack(id TrackID, arch Archetype) *Track {
	return &Track{
		id:            id,
		archetype:     arch,
		Color:         DefaultTrackColor,
		MaxMediaCount: UnboundedMedia,
		parent:        NoTrack,
		loadParent:    -1,
	}
}

func (t *Track) ID() TrackID            { return t.id }
func (t *Track) Name() string           { return t.name }
func (t *Track) Archetype() Archetype   { return t.archetype }
func (t *Track) Timeline() *Timeline    { return t.timeline }
func (t *Track) Mute() bool             { return t.Flags&FlagMute != 0 }
func (t *Track) Loop() bool             { return t.Flags&FlagLoop != 0 }
func (t *Track) MediaCount() int        { return len(t.media) }
func (t *Track) HasChildren() bool      { return len(t.children) > 0 }
func (t *Track) ChildCount() int        { return len(t.children) }
func (t *Track) IsRoot() bool           { return t.parent == NoTrack }
func (t *Track) setFlag(f TrackFlags, on bool) {
	if on {
		t.Flags |= f
	} else {
		t.Flags &^= f
	}
}

// SetMute toggles the mute flag.
func (t *Track) SetMute(on bool) {
	t.setFlag(FlagMute, on)
	t.touch()
}

// SetLoop toggles the loop flag.
func (t *Track) SetLoop(on bool) {
	t.setFlag(FlagLoop, on)
	t.touch()
}

// DisplayName is the title when set, the name otherwise.
func (t *Track) DisplayName() string {
	if t.Title != "" {
		return t.Title
	}
	return t.name
}

// Parent returns the parent track, or nil for a root track.
func (t *Track) Parent() *Track {
	if t.parent == NoTrack || t.timeline == nil {
		return nil
	}
	return t.timeline.tracks[t.parent]
}

// Children returns the child tracks in sibling order.
func (t *Track) Children() []*Track {
	if t.timeline == nil {
		return nil
	}
	out := make([]*Track, 0, len(t.children))
	for _, id := range t.children {
		out = append(out, t.timeline.tracks[id])
	}
	return out
}

// Index is the track's position in the timeline flat list, or -1.
func (t *Track) Index() int {
	if t.timeline == nil {
		return -1
	}
	return slices.Index(t.timeline.flat, t.id)
}

// Media returns the media owned by the track.
func (t *Track) Media() []*Media {
	return slices.Clone(t.media)
}

// MediaAt returns the media covering frame, if any.
func (t *Track) MediaAt(frame int) *Media {
	for _, m := range t.media {
		if m.Contains(frame) {
			return m
		}
	}
	return nil
}

func (t *Track) canAddMedia() bool {
	return t.MaxMediaCount < 0 || len(t.media) < t.MaxMediaCount
}

// AddMedia gives ownership of m to the track.
func (t *Track) AddMedia(m *Media) error {
	if m == nil {
		return ErrNilMedia
	}
	if m.track == t {
		return nil
	}
	if m.track != nil {
		return ErrMediaOwned
	}
	if !t.canAddMedia() {
		return ErrMediaLimit
	}
	m.track = t
	t.media = append(t.media, m)
	t.mediaChanged()
	return nil
}

// RemoveMedia releases m. It refuses to go below MinMediaCount or to remove
// media that can not be deleted.
func (t *Track) RemoveMedia(m *Media) error {
	if m == nil {
		return ErrNilMedia
	}
	i := slices.Index(t.media, m)
	if i < 0 {
		return ErrMediaNotFound
	}
	if !m.CanDelete || len(t.media)-1 < t.MinMediaCount {
		return ErrMediaLimit
	}
	t.media = slices.Delete(t.media, i, i+1)
	m.track = nil
	if t.timeline != nil {
		t.timeline.forgetMedia(m)
	}
	t.mediaChanged()
	return nil
}

// SortMedia orders media by start frame.
func (t *Track) SortMedia() {
	slices.SortStableFunc(t.media, func(a, b *Media) int { return a.start - b.start })
}

// clearMedia detaches every media without limit checks; used before a
// payload is decoded into an existing track.
func (t *Track) clearMedia() {
	for _, m := range t.media {
		m.track = nil
		if t.timeline != nil {
			t.timeline.forgetMedia(m)
		}
	}
	t.media = nil
}

func (t *Track) mediaChanged() {
	if t.timeline == nil {
		return
	}
	t.timeline.markModified()
	t.timeline.enqueue(Event{Kind: MediaChanged, Track: t.id})
}

func (t *Track) touch() {
	if t.timeline != nil {
		t.timeline.markModified()
	}
}
