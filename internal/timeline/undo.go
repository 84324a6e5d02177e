package timeline

import (
	"bytes"
	"fmt"
	"image/color"
	"slices"

	"go.uber.org/zap"

	"github.com/ivlev/sequencer/internal/stream"
)

// Command is an undoable step emitted by the timeline. The timeline never
// runs commands itself; an UndoSink owns them.
type Command interface {
	Name() string
	Apply() error
	Revert() error
}

// UndoSink receives commands as edits complete.
type UndoSink interface {
	Push(cmd Command)
}

// WithTickBatching makes every command wait for FlushUndo, so all edits of
// one update tick become a single undo step.
func WithTickBatching() Option {
	return func(tl *Timeline) { tl.tickBatch = true }
}

func (tl *Timeline) recording() bool {
	return tl.undo != nil && !tl.applying
}

func (tl *Timeline) emit(cmd Command) {
	if !tl.recording() {
		return
	}
	logCommand(tl.log, "emit", cmd)
	if tl.undoDepth > 0 || tl.tickBatch {
		tl.pending = append(tl.pending, cmd)
		return
	}
	tl.undo.Push(cmd)
}

// BeginUndoBatch starts grouping commands. Batches nest; the outermost
// label names the composite.
func (tl *Timeline) BeginUndoBatch(label string) {
	if tl.undoDepth == 0 && tl.undoLabel == "" {
		tl.undoLabel = label
	}
	tl.undoDepth++
}

// EndUndoBatch closes a batch opened by BeginUndoBatch and flushes when the
// outermost batch ends, unless tick batching defers the flush.
func (tl *Timeline) EndUndoBatch() {
	if tl.undoDepth == 0 {
		return
	}
	tl.undoDepth--
	if tl.undoDepth == 0 && !tl.tickBatch {
		tl.FlushUndo()
	}
}

// FlushUndo hands pending commands to the sink, wrapped in a composite
// when there is more than one.
func (tl *Timeline) FlushUndo() {
	if tl.undoDepth > 0 {
		return
	}
	pending, label := tl.pending, tl.undoLabel
	tl.pending, tl.undoLabel = nil, ""
	if tl.undo == nil || len(pending) == 0 {
		return
	}
	if len(pending) == 1 {
		tl.undo.Push(pending[0])
		return
	}
	if label == "" {
		label = pending[0].Name()
	}
	tl.undo.Push(&CompositeCommand{Label: label, Commands: pending})
}

// PendingUndo is the number of commands waiting for a flush.
func (tl *Timeline) PendingUndo() int { return len(tl.pending) }

// replay runs a command body with capture disabled and events batched.
func (tl *Timeline) replay(fn func() error) error {
	if tl.locked > 0 {
		return ErrReentrant
	}
	prev := tl.applying
	tl.applying = true
	tl.begin()
	defer func() {
		tl.end()
		tl.applying = prev
	}()
	return fn()
}

// CompositeCommand applies its commands in order and reverts them in
// reverse order.
type CompositeCommand struct {
	Label    string
	Commands []Command
}

func (c *CompositeCommand) Name() string { return c.Label }

func (c *CompositeCommand) Apply() error {
	for _, cmd := range c.Commands {
		if err := cmd.Apply(); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name(), err)
		}
	}
	return nil
}

func (c *CompositeCommand) Revert() error {
	for i := len(c.Commands) - 1; i >= 0; i-- {
		if err := c.Commands[i].Revert(); err != nil {
			return fmt.Errorf("%s: %w", c.Commands[i].Name(), err)
		}
	}
	return nil
}

// trackRecord is everything needed to re-create a removed track with its
// original id and position.
type trackRecord struct {
	ID       TrackID
	TypeID   uint8
	Name     string
	Title    string
	Icon     string
	Flags    TrackFlags
	Color    color.RGBA
	Min, Max int
	Parent   TrackID
	Index    int
	Payload  []byte
}

func (tl *Timeline) encodePayload(t *Track) ([]byte, error) {
	w := stream.NewWriter()
	tl.lock()
	err := t.archetype.Save(t, w)
	tl.unlock()
	if err == nil {
		err = w.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("save %s payload of %q: %w", t.archetype.Name(), t.name, err)
	}
	return w.Bytes(), nil
}

func (tl *Timeline) decodePayload(t *Track, payload []byte) error {
	r := stream.NewReader(payload)
	tl.lock()
	err := t.archetype.Load(CurrentVersion, t, r)
	tl.unlock()
	if err == nil {
		err = r.Err()
	}
	if err != nil {
		return fmt.Errorf("load %s payload of %q: %w", t.archetype.Name(), t.name, err)
	}
	return nil
}

// snapshotRecords captures tracks ordered by flat position.
func (tl *Timeline) snapshotRecords(tracks []*Track) ([]trackRecord, error) {
	out := make([]trackRecord, 0, len(tracks))
	for _, t := range tracks {
		payload, err := tl.encodePayload(t)
		if err != nil {
			return nil, err
		}
		out = append(out, trackRecord{
			ID:      t.id,
			TypeID:  t.archetype.TypeID(),
			Name:    t.name,
			Title:   t.Title,
			Icon:    t.Icon,
			Flags:   t.Flags,
			Color:   t.Color,
			Min:     t.MinMediaCount,
			Max:     t.MaxMediaCount,
			Parent:  t.parent,
			Index:   t.Index(),
			Payload: payload,
		})
	}
	slices.SortStableFunc(out, func(a, b trackRecord) int { return a.Index - b.Index })
	return out, nil
}

// construct builds a detached track through its archetype factory.
func (tl *Timeline) construct(arch Archetype, id TrackID, name string) (*Track, error) {
	t := newTrack(id, arch)
	tl.lock()
	err := arch.Create(t, CreateOptions{Name: name})
	tl.unlock()
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", arch.Name(), err)
	}
	t.clearMedia()
	t.name = name
	return t, nil
}

// restoreRecord re-creates a track from rec and inserts it at rec.Index.
// Child lists are left for the caller to rebuild.
func (tl *Timeline) restoreRecord(rec trackRecord) (*Track, error) {
	arch, ok := tl.registry.Lookup(rec.TypeID)
	if !ok {
		return nil, &UnknownTrackTypeError{TypeID: rec.TypeID, Index: rec.Index}
	}
	t, err := tl.construct(arch, rec.ID, rec.Name)
	if err != nil {
		return nil, err
	}
	t.Title, t.Icon = rec.Title, rec.Icon
	t.Flags, t.Color = rec.Flags, rec.Color
	t.MinMediaCount, t.MaxMediaCount = rec.Min, rec.Max
	t.parent = rec.Parent
	if err := tl.decodePayload(t, rec.Payload); err != nil {
		return nil, err
	}
	tl.attach(t)
	at := min(max(rec.Index, 0), len(tl.flat))
	tl.flat = slices.Insert(tl.flat, at, t.id)
	return t, nil
}

func (tl *Timeline) restoreRecords(records []trackRecord) error {
	for _, rec := range records {
		t, err := tl.restoreRecord(rec)
		if err != nil {
			return err
		}
		tl.enqueue(Event{Kind: TrackAdded, Track: t.id})
	}
	tl.rebuildChildren()
	tl.markModified()
	return nil
}

func (tl *Timeline) removeRecords(records []trackRecord) error {
	doomed := make([]*Track, 0, len(records))
	for _, rec := range records {
		t, ok := tl.tracks[rec.ID]
		if !ok {
			return fmt.Errorf("track %d: %w", rec.ID, ErrTrackNotFound)
		}
		doomed = append(doomed, t)
	}
	tl.detach(doomed)
	return nil
}

// AddTrackCommand re-creates added tracks on Apply and removes them on
// Revert.
type AddTrackCommand struct {
	tl      *Timeline
	records []trackRecord
}

func (c *AddTrackCommand) Name() string {
	if len(c.records) == 1 {
		return "Add Track"
	}
	return "Add Tracks"
}

func (c *AddTrackCommand) Apply() error {
	return c.tl.replay(func() error { return c.tl.restoreRecords(c.records) })
}

func (c *AddTrackCommand) Revert() error {
	return c.tl.replay(func() error { return c.tl.removeRecords(c.records) })
}

// RemoveTrackCommand is the inverse of AddTrackCommand.
type RemoveTrackCommand struct {
	tl      *Timeline
	records []trackRecord
}

func (c *RemoveTrackCommand) Name() string {
	if len(c.records) == 1 {
		return "Remove Track"
	}
	return "Remove Tracks"
}

func (c *RemoveTrackCommand) Apply() error {
	return c.tl.replay(func() error { return c.tl.removeRecords(c.records) })
}

func (c *RemoveTrackCommand) Revert() error {
	return c.tl.replay(func() error { return c.tl.restoreRecords(c.records) })
}

// ReorderTrackCommand restores the flat order and the parent of Track.
// Track is NoTrack for whole-list reorders such as sorting.
type ReorderTrackCommand struct {
	tl        *Timeline
	Track     TrackID
	OldParent TrackID
	NewParent TrackID
	Before    []TrackID
	After     []TrackID
}

func (c *ReorderTrackCommand) Name() string { return "Reorder Track" }

func (c *ReorderTrackCommand) Apply() error {
	return c.tl.replay(func() error { return c.set(c.NewParent, c.After) })
}

func (c *ReorderTrackCommand) Revert() error {
	return c.tl.replay(func() error { return c.set(c.OldParent, c.Before) })
}

func (c *ReorderTrackCommand) set(parent TrackID, order []TrackID) error {
	tl := c.tl
	if len(order) != len(tl.flat) {
		return fmt.Errorf("reorder: %w", ErrTrackNotFound)
	}
	for _, id := range order {
		if _, ok := tl.tracks[id]; !ok {
			return fmt.Errorf("reorder track %d: %w", id, ErrTrackNotFound)
		}
	}
	if c.Track != NoTrack {
		t, ok := tl.tracks[c.Track]
		if !ok {
			return fmt.Errorf("reorder track %d: %w", c.Track, ErrTrackNotFound)
		}
		t.parent = parent
	}
	tl.flat = slices.Clone(order)
	tl.rebuildChildren()
	tl.structureChanged(c.OldParent, c.NewParent)
	return nil
}

// RenameTrackCommand swaps a track name.
type RenameTrackCommand struct {
	tl    *Timeline
	Track TrackID
	Old   string
	New   string
}

func (c *RenameTrackCommand) Name() string { return "Rename Track" }

func (c *RenameTrackCommand) Apply() error {
	return c.tl.replay(func() error { return c.set(c.New) })
}

func (c *RenameTrackCommand) Revert() error {
	return c.tl.replay(func() error { return c.set(c.Old) })
}

func (c *RenameTrackCommand) set(name string) error {
	t, ok := c.tl.tracks[c.Track]
	if !ok {
		return fmt.Errorf("rename track %d: %w", c.Track, ErrTrackNotFound)
	}
	t.name = c.tl.uniqueName(name, t)
	c.tl.markModified()
	c.tl.enqueue(Event{Kind: TrackRenamed, Track: t.id})
	return nil
}

// trackState is the byte snapshot of one track's editable content.
type trackState struct {
	flags   TrackFlags
	color   color.RGBA
	title   string
	icon    string
	payload []byte
}

func (s trackState) equal(o trackState) bool {
	return s.flags == o.flags && s.color == o.color && s.title == o.title &&
		s.icon == o.icon && bytes.Equal(s.payload, o.payload)
}

func (tl *Timeline) captureTrack(t *Track) (trackState, error) {
	payload, err := tl.encodePayload(t)
	if err != nil {
		return trackState{}, err
	}
	return trackState{flags: t.Flags, color: t.Color, title: t.Title, icon: t.Icon, payload: payload}, nil
}

func (tl *Timeline) restoreTrack(t *Track, s trackState) error {
	t.clearMedia()
	t.Flags, t.Color, t.Title, t.Icon = s.flags, s.color, s.title, s.icon
	if err := tl.decodePayload(t, s.payload); err != nil {
		return err
	}
	tl.markModified()
	tl.enqueue(Event{Kind: MediaChanged, Track: t.id})
	return nil
}

// EditTrack runs fn, which changes the content of t (flags, color, media,
// archetype data), and records one undo step from before/after snapshots.
// Nothing is recorded when the snapshots are identical.
func (tl *Timeline) EditTrack(t *Track, name string, fn func() error) error {
	if err := tl.checkTrack(t); err != nil {
		return err
	}
	if err := tl.guard("edit track"); err != nil {
		return err
	}
	if !tl.recording() {
		tl.begin()
		defer tl.end()
		return fn()
	}

	before, err := tl.captureTrack(t)
	if err != nil {
		return err
	}
	tl.begin()
	defer tl.end()
	if err := fn(); err != nil {
		return err
	}
	if !tl.owns(t) {
		return nil
	}
	after, err := tl.captureTrack(t)
	if err != nil {
		return err
	}
	if before.equal(after) {
		return nil
	}
	tl.markModified()
	tl.emit(&EditTrackCommand{tl: tl, label: name, Track: t.id, before: before, after: after})
	return nil
}

// EditTrackCommand restores a track snapshot.
type EditTrackCommand struct {
	tl     *Timeline
	label  string
	Track  TrackID
	before trackState
	after  trackState
}

func (c *EditTrackCommand) Name() string {
	if c.label == "" {
		return "Edit Track"
	}
	return c.label
}

func (c *EditTrackCommand) Apply() error {
	return c.tl.replay(func() error { return c.restore(c.after) })
}

func (c *EditTrackCommand) Revert() error {
	return c.tl.replay(func() error { return c.restore(c.before) })
}

func (c *EditTrackCommand) restore(s trackState) error {
	t, ok := c.tl.tracks[c.Track]
	if !ok {
		return fmt.Errorf("edit track %d: %w", c.Track, ErrTrackNotFound)
	}
	return c.tl.restoreTrack(t, s)
}

type editKind int

const (
	editFps editKind = iota
	editData
)

// timelineState is a whole-timeline byte snapshot plus the ids of the
// tracks in flat order, so a restore keeps track identity.
type timelineState struct {
	ids  []TrackID
	data []byte
}

func (s timelineState) equal(o timelineState) bool {
	return slices.Equal(s.ids, o.ids) && bytes.Equal(s.data, o.data)
}

func (tl *Timeline) captureTimeline() (timelineState, error) {
	data, err := tl.encode()
	if err != nil {
		return timelineState{}, err
	}
	return timelineState{ids: slices.Clone(tl.flat), data: data}, nil
}

// restoreTimeline decodes s and copies it into the existing tracks when the
// structure still matches, so outstanding *Track values stay valid.
func (tl *Timeline) restoreTimeline(s timelineState) error {
	staging := tl.stage()
	staging.reuse = slices.Clone(s.ids)
	if _, err := staging.decode(s.data); err != nil {
		return err
	}

	tl.fps, tl.duration = staging.fps, staging.duration
	tl.current = min(tl.current, tl.duration)

	if tl.sameStructure(staging) {
		for _, id := range tl.flat {
			live, st := tl.tracks[id], staging.tracks[id]
			live.clearMedia()
			live.name = st.name
			live.Flags, live.Color = st.Flags, st.Color
			live.MinMediaCount, live.MaxMediaCount = st.MinMediaCount, st.MaxMediaCount
			live.parent = st.parent
			live.Data = st.Data
			live.media = st.media
			for _, m := range live.media {
				m.track = live
			}
			tl.enqueue(Event{Kind: MediaChanged, Track: id})
		}
	} else {
		for _, t := range tl.tracks {
			t.timeline = nil
		}
		clear(tl.selTracks)
		clear(tl.selMedia)
		tl.tracks = staging.tracks
		tl.flat = staging.flat
		for _, t := range tl.tracks {
			t.timeline = tl
		}
		tl.enqueue(Event{Kind: TracksReordered, Track: NoTrack})
	}
	tl.nextID = max(tl.nextID, staging.nextID)
	tl.rebuildChildren()
	tl.markModified()
	tl.enqueue(Event{Kind: FpsChanged, Track: NoTrack})
	tl.enqueue(Event{Kind: DurationChanged, Track: NoTrack})
	return nil
}

func (tl *Timeline) sameStructure(other *Timeline) bool {
	if !slices.Equal(tl.flat, other.flat) {
		return false
	}
	for id, t := range tl.tracks {
		o, ok := other.tracks[id]
		if !ok || o.archetype.TypeID() != t.archetype.TypeID() {
			return false
		}
	}
	return true
}

func (tl *Timeline) editTimeline(kind editKind, name string, fn func() error) error {
	if !tl.recording() {
		tl.begin()
		defer tl.end()
		return fn()
	}
	before, err := tl.captureTimeline()
	if err != nil {
		return err
	}
	tl.begin()
	defer tl.end()
	if err := fn(); err != nil {
		return err
	}
	after, err := tl.captureTimeline()
	if err != nil {
		return err
	}
	if before.equal(after) {
		return nil
	}
	edit := timelineEdit{tl: tl, label: name, before: before, after: after}
	switch kind {
	case editFps:
		tl.emit(&EditFpsCommand{edit})
	default:
		tl.emit(&EditTimelineCommand{edit})
	}
	return nil
}

type timelineEdit struct {
	tl     *Timeline
	label  string
	before timelineState
	after  timelineState
}

func (e timelineEdit) Name() string { return e.label }

func (e timelineEdit) Apply() error {
	return e.tl.replay(func() error { return e.tl.restoreTimeline(e.after) })
}

func (e timelineEdit) Revert() error {
	return e.tl.replay(func() error { return e.tl.restoreTimeline(e.before) })
}

// EditFpsCommand restores the timeline around a frame rate change.
type EditFpsCommand struct{ timelineEdit }

// EditTimelineCommand restores timeline-level data such as the duration or
// extension tables.
type EditTimelineCommand struct{ timelineEdit }

func logCommand(l *zap.Logger, action string, cmd Command) {
	l.Debug("undo command", zap.String("action", action), zap.String("name", cmd.Name()))
}

// TrackPayload returns the archetype payload of t in the current format
// version.
func (tl *Timeline) TrackPayload(t *Track) ([]byte, error) {
	if err := tl.checkTrack(t); err != nil {
		return nil, err
	}
	return tl.encodePayload(t)
}

// SetTrackPayload replaces the archetype state of t, media included, with a
// payload from TrackPayload. It is recorded as one edit.
func (tl *Timeline) SetTrackPayload(t *Track, payload []byte) error {
	return tl.EditTrack(t, "Set Track Data", func() error {
		before, err := tl.encodePayload(t)
		if err != nil {
			return err
		}
		t.clearMedia()
		if err := tl.decodePayload(t, payload); err != nil {
			t.clearMedia()
			if rerr := tl.decodePayload(t, before); rerr != nil {
				tl.log.Error("restore payload", zap.String("track", t.name), zap.Error(rerr))
			}
			return err
		}
		t.mediaChanged()
		return nil
	})
}
