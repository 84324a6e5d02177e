// Package timeline holds the track/media data model of the sequencer: a
// tree of tracks stored as an arena, the flat pre-order list used for
// iteration and persistence, selection, playback state, undo capture and the
// versioned binary format.
//
// A Timeline is not safe for concurrent use. All edits are expected to come
// from one editing goroutine.
package timeline

import (
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/ivlev/sequencer/internal/stream"
)

const (
	DefaultFPS      = 30.0
	MinFPS          = 0.1
	MaxFPS          = 1000.0
	DefaultDuration = 300
)

// Extension is implemented by concrete timeline kinds that store extra data
// around the track block. Header data is read before the tracks, custom
// data after every track exists.
type Extension interface {
	LoadTimelineData(version int32, r *stream.Reader) error
	SaveTimelineData(w *stream.Writer) error
	LoadTimelineCustomData(version int32, tl *Timeline, r *stream.Reader) error
	SaveTimelineCustomData(tl *Timeline, w *stream.Writer) error
}

// Option configures a Timeline.
type Option func(*Timeline)

func WithLogger(l *zap.Logger) Option {
	return func(tl *Timeline) {
		if l != nil {
			tl.log = l
		}
	}
}

func WithFPS(fps float64) Option {
	return func(tl *Timeline) { tl.fps = clampFPS(fps) }
}

func WithDuration(frames int) Option {
	return func(tl *Timeline) { tl.duration = max(frames, 1) }
}

func WithExtension(ext Extension) Option {
	return func(tl *Timeline) { tl.ext = ext }
}

func WithUndoSink(sink UndoSink) Option {
	return func(tl *Timeline) { tl.undo = sink }
}

func WithTimeDisplay(d TimeDisplay) Option {
	return func(tl *Timeline) { tl.display = d }
}

// Timeline is the aggregate root owning every track of an editing session.
type Timeline struct {
	registry *Registry
	log      *zap.Logger
	ext      Extension

	fps      float32
	duration int
	current  int
	display  TimeDisplay
	modified bool

	tracks map[TrackID]*Track
	flat   []TrackID
	nextID TrackID
	reuse  []TrackID

	selTracks map[TrackID]struct{}
	selMedia  map[*Media]struct{}

	state           PlaybackState
	player          Player
	playbackEnabled bool

	undo      UndoSink
	undoDepth int
	undoLabel string
	pending   []Command
	applying  bool
	tickBatch bool

	observers    []observerEntry
	nextObserver int
	queue        []Event
	depth        int
	draining     bool

	locked int
}

// New returns an empty timeline whose tracks are created from reg.
func New(reg *Registry, opts ...Option) *Timeline {
	if reg == nil {
		reg = MustRegistry()
	}
	tl := &Timeline{
		registry: reg,
		log:      zap.NewNop(),
		fps:      DefaultFPS,
		duration: DefaultDuration,
	}
	tl.reset()
	for _, opt := range opts {
		opt(tl)
	}
	return tl
}

func (tl *Timeline) reset() {
	tl.tracks = make(map[TrackID]*Track)
	tl.flat = nil
	tl.selTracks = make(map[TrackID]struct{})
	tl.selMedia = make(map[*Media]struct{})
	tl.current = 0
}

func clampFPS(fps float64) float32 {
	if math.IsNaN(fps) {
		return DefaultFPS
	}
	return float32(min(max(fps, MinFPS), MaxFPS))
}

func (tl *Timeline) Registry() *Registry      { return tl.registry }
func (tl *Timeline) Logger() *zap.Logger      { return tl.log }
func (tl *Timeline) Extension() Extension     { return tl.ext }
func (tl *Timeline) FPS() float64             { return float64(tl.fps) }
func (tl *Timeline) DurationFrames() int      { return tl.duration }
func (tl *Timeline) CurrentFrame() int        { return tl.current }
func (tl *Timeline) IsModified() bool         { return tl.modified }
func (tl *Timeline) TimeDisplay() TimeDisplay { return tl.display }
func (tl *Timeline) Len() int                 { return len(tl.flat) }

// DurationSeconds is the duration in wall-clock seconds.
func (tl *Timeline) DurationSeconds() float64 {
	return float64(tl.duration) / tl.FPS()
}

func (tl *Timeline) SetTimeDisplay(d TimeDisplay) { tl.display = d }

// SetUndoSink replaces the history that receives undo commands.
func (tl *Timeline) SetUndoSink(sink UndoSink) { tl.undo = sink }

// MarkClean clears the modified flag, typically after the caller has
// persisted the timeline.
func (tl *Timeline) MarkClean() { tl.modified = false }

func (tl *Timeline) markModified() {
	tl.modified = true
}

// guard reports whether a structural mutation is allowed right now.
func (tl *Timeline) guard(op string) error {
	if tl.locked > 0 {
		tl.log.Warn("rejected mutation during codec callback", zap.String("op", op))
		return fmt.Errorf("%s: %w", op, ErrReentrant)
	}
	return nil
}

func (tl *Timeline) lock()   { tl.locked++ }
func (tl *Timeline) unlock() { tl.locked-- }

// Tracks returns every track in flat-list order.
func (tl *Timeline) Tracks() []*Track {
	out := make([]*Track, 0, len(tl.flat))
	for _, id := range tl.flat {
		out = append(out, tl.tracks[id])
	}
	return out
}

// RootTracks returns the tracks without a parent in flat-list order.
func (tl *Timeline) RootTracks() []*Track {
	var out []*Track
	for _, id := range tl.flat {
		if t := tl.tracks[id]; t.parent == NoTrack {
			out = append(out, t)
		}
	}
	return out
}

// TrackAt returns the track at flat position i, or nil.
func (tl *Timeline) TrackAt(i int) *Track {
	if i < 0 || i >= len(tl.flat) {
		return nil
	}
	return tl.tracks[tl.flat[i]]
}

// TrackByID returns the track with id, or nil.
func (tl *Timeline) TrackByID(id TrackID) *Track {
	return tl.tracks[id]
}

// FindTrack returns the track named name, or nil.
func (tl *Timeline) FindTrack(name string) *Track {
	for _, id := range tl.flat {
		if t := tl.tracks[id]; t.name == name {
			return t
		}
	}
	return nil
}

func (tl *Timeline) owns(t *Track) bool {
	return t != nil && t.timeline == tl && tl.tracks[t.id] == t
}

func (tl *Timeline) checkTrack(t *Track) error {
	if t == nil {
		return ErrNilTrack
	}
	if !tl.owns(t) {
		return fmt.Errorf("%w: %q", ErrTrackNotFound, t.name)
	}
	return nil
}

// Clear removes every track and media and resets the modified flag.
func (tl *Timeline) Clear() error {
	if err := tl.guard("clear"); err != nil {
		return err
	}
	tl.begin()
	defer tl.end()
	for _, t := range tl.tracks {
		t.clearMedia()
		t.timeline = nil
	}
	tl.reset()
	tl.pending = nil
	tl.modified = false
	tl.enqueue(Event{Kind: Cleared, Track: NoTrack})
	return nil
}

// SetFPS changes the frame rate, clamped to [MinFPS, MaxFPS]. Every media,
// the duration and the current frame are rescaled so wall-clock times are
// kept. The change is recorded as one undo step.
func (tl *Timeline) SetFPS(fps float64) error {
	if err := tl.guard("set fps"); err != nil {
		return err
	}
	newFps := clampFPS(fps)
	if newFps == tl.fps {
		return nil
	}
	return tl.editTimeline(editFps, "Edit FPS", func() error {
		old := tl.FPS()
		tl.fps = newFps
		nf := tl.FPS()
		for _, id := range tl.flat {
			for _, m := range tl.tracks[id].media {
				m.RescaleForFps(old, nf)
			}
		}
		ratio := nf / old
		tl.duration = max(int(math.Round(float64(tl.duration)*ratio)), 1)
		tl.current = min(int(math.Round(float64(tl.current)*ratio)), tl.duration)
		tl.markModified()
		tl.enqueue(Event{Kind: FpsChanged, Track: NoTrack})
		tl.log.Debug("fps changed", zap.Float64("from", old), zap.Float64("to", nf))
		return nil
	})
}

// SetDuration changes the duration in frames (at least one).
func (tl *Timeline) SetDuration(frames int) error {
	if err := tl.guard("set duration"); err != nil {
		return err
	}
	frames = max(frames, 1)
	if frames == tl.duration {
		return nil
	}
	return tl.editTimeline(editData, "Edit Duration", func() error {
		tl.duration = frames
		tl.current = min(tl.current, frames)
		tl.markModified()
		tl.enqueue(Event{Kind: DurationChanged, Track: NoTrack})
		return nil
	})
}

// EditTimelineData runs fn, which changes timeline-level data such as the
// extension's tables, and records the change as a whole-timeline snapshot.
func (tl *Timeline) EditTimelineData(name string, fn func() error) error {
	if err := tl.guard("edit timeline"); err != nil {
		return err
	}
	return tl.editTimeline(editData, name, func() error {
		if err := fn(); err != nil {
			return err
		}
		tl.markModified()
		return nil
	})
}

// AddTrack creates a track from arch and appends it as the last child of
// opts.Parent, or as the last root track.
func (tl *Timeline) AddTrack(arch Archetype, opts CreateOptions) (*Track, error) {
	if arch == nil {
		return nil, ErrNilArchetype
	}
	if err := tl.guard("add track"); err != nil {
		return nil, err
	}
	if !tl.registry.registered(arch) {
		return nil, fmt.Errorf("%w: %s (%d)", ErrNotRegistered, arch.Name(), arch.TypeID())
	}
	if opts.Parent != nil && !tl.owns(opts.Parent) {
		return nil, fmt.Errorf("parent: %w", ErrTrackNotFound)
	}

	t := newTrack(tl.allocID(), arch)
	t.Title = opts.Title
	if opts.Parent != nil {
		t.parent = opts.Parent.id
	}
	name := opts.Name
	if name == "" {
		name = arch.Name()
	}

	tl.lock()
	err := arch.Create(t, opts)
	tl.unlock()
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", arch.Name(), err)
	}

	tl.begin()
	defer tl.end()

	t.name = tl.uniqueName(name, nil)
	tl.attach(t)
	tl.flat = slices.Insert(tl.flat, tl.subtreeEnd(t.parent), t.id)
	tl.rebuildChildren()
	tl.markModified()
	tl.enqueue(Event{Kind: TrackAdded, Track: t.id})
	if t.parent != NoTrack {
		tl.enqueue(Event{Kind: SubTracksChanged, Track: t.parent})
	}

	records, err := tl.snapshotRecords([]*Track{t})
	if err != nil {
		return t, err
	}
	tl.emit(&AddTrackCommand{tl: tl, records: records})
	tl.log.Debug("track added", zap.String("name", t.name), zap.String("type", arch.Name()))
	return t, nil
}

// AddTrackOfType looks up the archetype by type id and adds a track.
func (tl *Timeline) AddTrackOfType(typeID uint8, opts CreateOptions) (*Track, error) {
	arch, ok := tl.registry.Lookup(typeID)
	if !ok {
		return nil, &UnknownTrackTypeError{TypeID: typeID, Index: -1}
	}
	return tl.AddTrack(arch, opts)
}

func (tl *Timeline) allocID() TrackID {
	if len(tl.reuse) > 0 {
		id := tl.reuse[0]
		tl.reuse = tl.reuse[1:]
		tl.nextID = max(tl.nextID, id+1)
		return id
	}
	id := tl.nextID
	tl.nextID++
	return id
}

func (tl *Timeline) attach(t *Track) {
	t.timeline = tl
	for _, m := range t.media {
		m.track = t
	}
	tl.tracks[t.id] = t
	if t.id >= tl.nextID {
		tl.nextID = t.id + 1
	}
}

// RemoveTrack removes t together with its subtree and media.
func (tl *Timeline) RemoveTrack(t *Track) error {
	return tl.RemoveTracks(t)
}

// RemoveTracks removes every given track and its subtree as one undo step.
// Overlapping subtrees are removed once.
func (tl *Timeline) RemoveTracks(tracks ...*Track) error {
	for _, t := range tracks {
		if err := tl.checkTrack(t); err != nil {
			return err
		}
	}
	if err := tl.guard("remove track"); err != nil {
		return err
	}
	doomed := tl.CollectSubtree(tracks...)
	if len(doomed) == 0 {
		return nil
	}

	tl.begin()
	defer tl.end()

	records, err := tl.snapshotRecords(doomed)
	if err != nil {
		return err
	}
	tl.detach(doomed)
	tl.emit(&RemoveTrackCommand{tl: tl, records: records})
	tl.log.Debug("tracks removed", zap.Int("count", len(doomed)))
	return nil
}

func (tl *Timeline) detach(doomed []*Track) {
	gone := make(map[TrackID]bool, len(doomed))
	for _, t := range doomed {
		gone[t.id] = true
	}
	for _, t := range doomed {
		if t.parent != NoTrack && !gone[t.parent] {
			tl.enqueue(Event{Kind: SubTracksChanged, Track: t.parent})
		}
		t.clearMedia()
		delete(tl.selTracks, t.id)
		delete(tl.tracks, t.id)
		t.timeline = nil
		tl.enqueue(Event{Kind: TrackRemoved, Track: t.id})
	}
	tl.flat = slices.DeleteFunc(tl.flat, func(id TrackID) bool { return gone[id] })
	tl.rebuildChildren()
	tl.markModified()
}

// MoveMediaToTrack transfers m to dst when dst has room.
func (tl *Timeline) MoveMediaToTrack(m *Media, dst *Track) error {
	if m == nil {
		return ErrNilMedia
	}
	if err := tl.checkTrack(dst); err != nil {
		return err
	}
	src := m.track
	if src == dst {
		return nil
	}
	if src == nil || !tl.owns(src) {
		return ErrMediaNotFound
	}
	if !dst.canAddMedia() {
		return ErrMediaLimit
	}
	if len(src.media)-1 < src.MinMediaCount {
		return ErrMediaLimit
	}
	return tl.Batch("Move Media", func() error {
		return tl.EditTrack(src, "Move Media", func() error {
			return tl.EditTrack(dst, "Move Media", func() error {
				selected := tl.IsMediaSelected(m)
				i := slices.Index(src.media, m)
				src.media = slices.Delete(src.media, i, i+1)
				src.mediaChanged()
				m.track = nil
				if err := dst.AddMedia(m); err != nil {
					return err
				}
				if selected {
					tl.selMedia[m] = struct{}{}
				}
				return nil
			})
		})
	})
}

// SplitMedia splits m at frame as one undo step. It returns nil when the
// media can not be split there.
func (tl *Timeline) SplitMedia(m *Media, frame int) (*Media, error) {
	if m == nil {
		return nil, ErrNilMedia
	}
	var created *Media
	err := tl.EditTrack(m.track, "Split Media", func() error {
		created = m.Split(frame)
		return nil
	})
	return created, err
}

// EditMedia runs fn against m as one undo step of its track.
func (tl *Timeline) EditMedia(m *Media, name string, fn func(m *Media)) error {
	if m == nil {
		return ErrNilMedia
	}
	return tl.EditTrack(m.track, name, func() error {
		fn(m)
		return nil
	})
}
