// Package engine ties a timeline to its undo history, blob store and
// metrics, and runs batch jobs over timeline files.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivlev/sequencer/internal/archetypes"
	"github.com/ivlev/sequencer/internal/config"
	"github.com/ivlev/sequencer/internal/history"
	"github.com/ivlev/sequencer/internal/metrics"
	"github.com/ivlev/sequencer/internal/scenario"
	"github.com/ivlev/sequencer/internal/store"
	"github.com/ivlev/sequencer/internal/timeline"
)

var ErrNoStore = errors.New("engine: no store configured")

type Options struct {
	Config  *config.Config
	Store   store.Store
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Session is one open timeline. It is the undo sink of its timeline and
// counts every recorded edit.
type Session struct {
	ID        uuid.UUID
	Name      string
	Timeline  *timeline.Timeline
	History   *history.History
	Overrides *archetypes.Overrides

	store   store.Store
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewSession(opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	display, err := timeline.ParseTimeDisplay(cfg.Timeline.TimeDisplay)
	if err != nil {
		return nil, err
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	id := uuid.New()
	log = log.With(zap.String("session", id.String()))
	s := &Session{
		ID:        id,
		History:   history.New(cfg.History.Limit, log),
		Overrides: archetypes.NewOverrides(),
		store:     opts.Store,
		metrics:   m,
		log:       log,
	}
	s.History.OnChange = func(h *history.History) { m.SetHistoryDepth(h.UndoSize()) }

	tlOpts := []timeline.Option{
		timeline.WithLogger(log),
		timeline.WithFPS(cfg.Timeline.FPS),
		timeline.WithDuration(cfg.Timeline.Duration),
		timeline.WithExtension(s.Overrides),
		timeline.WithUndoSink(s),
		timeline.WithTimeDisplay(display),
	}
	if cfg.Timeline.TickBatch {
		tlOpts = append(tlOpts, timeline.WithTickBatching())
	}
	s.Timeline = timeline.New(archetypes.Registry(), tlOpts...)
	s.Timeline.Subscribe(func(e timeline.Event) {
		switch e.Kind {
		case timeline.TrackAdded, timeline.TrackRemoved, timeline.Loaded, timeline.Cleared:
			m.SetTracks(s.Timeline.Len())
		}
	})
	return s, nil
}

func (s *Session) Metrics() *metrics.Metrics { return s.metrics }
func (s *Session) Logger() *zap.Logger       { return s.log }

// Push implements timeline.UndoSink.
func (s *Session) Push(cmd timeline.Command) {
	s.History.Push(cmd)
	s.metrics.IncEdit(cmd.Name())
}

// Undo flushes pending tick-batched edits and reverts the latest step.
func (s *Session) Undo() (history.Entry, error) {
	s.Timeline.FlushUndo()
	e, err := s.History.Undo()
	if err == nil {
		s.metrics.IncUndo()
	}
	return e, err
}

func (s *Session) Redo() (history.Entry, error) {
	s.Timeline.FlushUndo()
	e, err := s.History.Redo()
	if err == nil {
		s.metrics.IncRedo()
	}
	return e, err
}

// Load replaces the timeline with data and forgets the undo history.
func (s *Session) Load(data []byte) error {
	if err := s.Timeline.Load(data); err != nil {
		s.metrics.IncLoadFailures()
		return err
	}
	s.History.Clear()
	s.metrics.IncLoads()
	return nil
}

// Save serializes the timeline in the current format version.
func (s *Session) Save() ([]byte, error) {
	s.Timeline.FlushUndo()
	data, err := s.Timeline.Save()
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSave(len(data))
	return data, nil
}

func (s *Session) OpenFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := s.Load(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	s.Name = path
	return nil
}

func (s *Session) SaveFile(path string) error {
	data, err := s.Save()
	if err != nil {
		return err
	}
	if err := writeAtomic(path, data); err != nil {
		return err
	}
	s.Timeline.MarkClean()
	s.Name = path
	return nil
}

// Open loads the named timeline from the store.
func (s *Session) Open(ctx context.Context, name string) error {
	if s.store == nil {
		return ErrNoStore
	}
	data, err := s.store.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	if err := s.Load(data); err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	s.Name = name
	s.log.Info("timeline opened", zap.String("name", name), zap.Int("tracks", s.Timeline.Len()))
	return nil
}

// Commit saves the timeline to the store under name.
func (s *Session) Commit(ctx context.Context, name string) error {
	if s.store == nil {
		return ErrNoStore
	}
	data, err := s.Save()
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	s.Timeline.MarkClean()
	s.Name = name
	s.log.Info("timeline committed", zap.String("name", name), zap.Int("bytes", len(data)))
	return nil
}

// ImportScenario replaces the timeline with the content of doc. Like Load,
// it fails without touching the current timeline.
func (s *Session) ImportScenario(doc *scenario.Document) error {
	built, err := scenario.Build(s.Timeline.Registry(), doc,
		timeline.WithLogger(s.log),
		timeline.WithExtension(archetypes.NewOverrides()),
	)
	if err != nil {
		return err
	}
	data, err := built.Save()
	if err != nil {
		return err
	}
	return s.Load(data)
}

func (s *Session) ExportScenario() (*scenario.Document, error) {
	return scenario.Export(s.Timeline)
}

// Close releases the store. The timeline stays usable.
func (s *Session) Close() error {
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// Stats summarizes the open timeline.
type Stats struct {
	Session   string
	Name      string
	Tracks    int
	Roots     int
	Media     int
	MaxDepth  int
	FPS       float64
	Duration  string
	UndoDepth int
	RedoDepth int
	Modified  bool
	ByType    map[string]int
}

func (s *Session) Stats() Stats {
	tl := s.Timeline
	st := Stats{
		Session:   s.ID.String(),
		Name:      s.Name,
		Tracks:    tl.Len(),
		Roots:     len(tl.RootTracks()),
		FPS:       tl.FPS(),
		Duration:  tl.FormatFrame(tl.DurationFrames()),
		UndoDepth: s.History.UndoSize(),
		RedoDepth: s.History.RedoSize(),
		Modified:  tl.IsModified(),
		ByType:    make(map[string]int),
	}
	tl.Walk(func(t *timeline.Track, depth int) bool {
		st.Media += t.MediaCount()
		st.MaxDepth = max(st.MaxDepth, depth)
		st.ByType[t.Archetype().Name()]++
		return true
	})
	return st
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
