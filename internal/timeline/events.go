package timeline

// EventKind identifies a timeline notification.
type EventKind int

const (
	TrackAdded EventKind = iota
	TrackRemoved
	TracksReordered
	TrackRenamed
	MediaChanged
	SubTracksChanged
	SelectionChanged
	PlaybackStateChanged
	CurrentFrameChanged
	FpsChanged
	DurationChanged
	Loaded
	Cleared
)

var eventNames = map[EventKind]string{
	TrackAdded:           "track.added",
	TrackRemoved:         "track.removed",
	TracksReordered:      "tracks.reordered",
	TrackRenamed:         "track.renamed",
	MediaChanged:         "media.changed",
	SubTracksChanged:     "subtracks.changed",
	SelectionChanged:     "selection.changed",
	PlaybackStateChanged: "playback.state",
	CurrentFrameChanged:  "playback.frame",
	FpsChanged:           "fps.changed",
	DurationChanged:      "duration.changed",
	Loaded:               "timeline.loaded",
	Cleared:              "timeline.cleared",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is queued while an edit runs and delivered to observers once the
// outermost edit has finished.
type Event struct {
	Kind  EventKind
	Track TrackID
}

// Observer receives timeline events.
type Observer func(Event)

// Subscribe registers fn and returns a function that removes it.
func (tl *Timeline) Subscribe(fn Observer) (cancel func()) {
	id := tl.nextObserver
	tl.nextObserver++
	tl.observers = append(tl.observers, observerEntry{id: id, fn: fn})
	return func() {
		for i, o := range tl.observers {
			if o.id == id {
				tl.observers = append(tl.observers[:i:i], tl.observers[i+1:]...)
				return
			}
		}
	}
}

type observerEntry struct {
	id int
	fn Observer
}

// enqueue drops duplicates of an already queued event.
func (tl *Timeline) enqueue(e Event) {
	for _, q := range tl.queue {
		if q == e {
			return
		}
	}
	tl.queue = append(tl.queue, e)
	if tl.depth == 0 {
		tl.drain()
	}
}

func (tl *Timeline) begin() { tl.depth++ }

func (tl *Timeline) end() {
	tl.depth--
	if tl.depth == 0 {
		tl.drain()
	}
}

func (tl *Timeline) drain() {
	if tl.draining {
		return
	}
	tl.draining = true
	defer func() { tl.draining = false }()
	for len(tl.queue) > 0 {
		batch := tl.queue
		tl.queue = nil
		observers := append([]observerEntry(nil), tl.observers...)
		for _, e := range batch {
			for _, o := range observers {
				o.fn(e)
			}
		}
	}
}

// Batch runs fn as one edit: events raised inside are delivered after fn
// returns, and undo commands are grouped into a single composite.
func (tl *Timeline) Batch(name string, fn func() error) error {
	tl.begin()
	tl.BeginUndoBatch(name)
	defer func() {
		tl.EndUndoBatch()
		tl.end()
	}()
	return fn()
}
