package timeline

import (
	"fmt"
	"slices"

	"github.com/ivlev/sequencer/internal/stream"
)

// Archetype constructs, loads and saves one kind of track. The core calls
// archetypes through this interface only and never reads their payload.
type Archetype interface {
	TypeID() uint8
	Name() string
	// Create initialises a freshly added track: limits, data, initial media.
	Create(t *Track, opts CreateOptions) error
	// Load decodes the archetype payload written by Save. version is the
	// format version of the stream being read.
	Load(version int32, t *Track, r *stream.Reader) error
	Save(t *Track, w *stream.Writer) error
}

// CreateOptions are passed to Archetype.Create for a new track.
type CreateOptions struct {
	Name   string
	Title  string
	Parent *Track
	// Start and Duration hint the range of an initial media, for
	// archetypes that create one.
	Start    int
	Duration int
}

// LoadedHook is implemented by archetypes that need a fixup once the
// track's parent has been resolved after a load.
type LoadedHook interface {
	OnLoaded(t *Track)
}

// FrameListener is implemented by archetypes that cache per-frame state.
type FrameListener interface {
	OnTimelineCurrentFrameChanged(t *Track, frame int)
}

// MediaSplitter fills the Data of a media created by Split. Pointer data
// must be copied, not shared.
type MediaSplitter interface {
	SplitMedia(original, created *Media)
}

// Registry maps persisted type ids to archetypes.
type Registry struct {
	byID map[uint8]Archetype
}

// NewRegistry registers archs in order.
func NewRegistry(archs ...Archetype) (*Registry, error) {
	r := &Registry{byID: make(map[uint8]Archetype)}
	for _, a := range archs {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry for static archetype sets.
func MustRegistry(archs ...Archetype) *Registry {
	r, err := NewRegistry(archs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Register(a Archetype) error {
	if a == nil {
		return ErrNilArchetype
	}
	if prev, ok := r.byID[a.TypeID()]; ok {
		return fmt.Errorf("%w: %d (%s, %s)", ErrDuplicateTypeID, a.TypeID(), prev.Name(), a.Name())
	}
	r.byID[a.TypeID()] = a
	return nil
}

func (r *Registry) Lookup(id uint8) (Archetype, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// ByName finds an archetype by its display name.
func (r *Registry) ByName(name string) (Archetype, bool) {
	for _, a := range r.byID {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// All returns the archetypes ordered by type id.
func (r *Registry) All() []Archetype {
	out := make([]Archetype, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Archetype) int { return int(a.TypeID()) - int(b.TypeID()) })
	return out
}

func (r *Registry) registered(a Archetype) bool {
	_, ok := r.byID[a.TypeID()]
	return ok
}
