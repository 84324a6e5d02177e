package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ivlev/sequencer/internal/archetypes"
	"github.com/ivlev/sequencer/internal/timeline"
)

// WatchEvent reports a timeline file that changed and whether it still
// loads.
type WatchEvent struct {
	Path    string
	Version int32
	Tracks  int
	Err     error
}

// DefaultSettle is how long a file must stay quiet before it is inspected.
const DefaultSettle = 150 * time.Millisecond

// Watch inspects every timeline file with extension ext that is created or
// written in dir until ctx is done. Bursts of writes to one file produce a
// single event once the file has been quiet for settle.
func Watch(ctx context.Context, dir, ext string, settle time.Duration, log *zap.Logger, fn func(WatchEvent)) error {
	if log == nil {
		log = zap.NewNop()
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Info("watching", zap.String("dir", dir), zap.String("ext", ext))

	pending := make(map[string]time.Time)
	tick := time.NewTicker(settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ext) {
				continue
			}
			pending[ev.Name] = time.Now()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		case now := <-tick.C:
			for path, at := range pending {
				if now.Sub(at) < settle {
					continue
				}
				delete(pending, path)
				fn(inspect(path, log))
			}
		}
	}
}

func inspect(path string, log *zap.Logger) WatchEvent {
	ev := WatchEvent{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		ev.Err = err
		return ev
	}
	if ev.Version, err = timeline.PeekVersion(data); err != nil {
		ev.Err = err
		return ev
	}
	tl := timeline.New(archetypes.Registry(),
		timeline.WithLogger(log.With(zap.String("path", path))),
		timeline.WithExtension(archetypes.NewOverrides()),
	)
	if ev.Err = tl.Load(data); ev.Err == nil {
		ev.Tracks = tl.Len()
	}
	return ev
}
