package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ivlev/sequencer/internal/archetypes"
	"github.com/ivlev/sequencer/internal/timeline"
)

type ImportOptions struct {
	Name   string
	Parent *timeline.Track
	DPI    int
	// Seconds is the span the pages are spread over; the timeline
	// duration when zero.
	Seconds float64
	Planner Planner
}

// ImportStoryboard adds a storyboard track with one panel per page of src
// as a single undo step. The timeline grows when the panels run past its
// end.
func ImportStoryboard(tl *timeline.Timeline, src Source, opts ImportOptions) (*timeline.Track, error) {
	pages := src.PageCount()
	if pages == 0 {
		return nil, fmt.Errorf("%s: no pages", src.Path())
	}
	if opts.DPI <= 0 {
		opts.DPI = 72
	}
	if opts.Seconds <= 0 {
		opts.Seconds = tl.DurationSeconds()
	}
	if opts.Planner == (Planner{}) {
		opts.Planner = DefaultPlanner()
	}
	title := strings.TrimSuffix(filepath.Base(src.Path()), filepath.Ext(src.Path()))
	if opts.Name == "" {
		opts.Name = title
	}

	panels := make([]archetypes.Panel, pages)
	for i := range panels {
		w, h, err := src.PageSize(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		panels[i] = archetypes.Panel{Page: int32(i), Width: float32(w), Height: float32(h)}
	}
	slots := opts.Planner.Plan(opts.Seconds, pages, tl.FPS())

	var track *timeline.Track
	err := tl.Batch("Import Storyboard", func() error {
		t, err := tl.AddTrackOfType(archetypes.StoryboardTypeID, timeline.CreateOptions{
			Name:   opts.Name,
			Title:  title,
			Parent: opts.Parent,
		})
		if err != nil {
			return err
		}
		track = t
		err = tl.EditTrack(t, "Import Panels", func() error {
			t.Data = &archetypes.Board{Source: src.Path(), DPI: int32(opts.DPI)}
			for i, slot := range slots {
				m := timeline.NewMedia(slot.Start, slot.Duration)
				m.CanSplit = false
				panel := panels[i]
				m.Data = &panel
				if err := t.AddMedia(m); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		if end := slots[len(slots)-1].Start + slots[len(slots)-1].Duration; end > tl.DurationFrames() {
			return tl.SetDuration(end)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	tl.Logger().Info("storyboard imported",
		zap.String("source", src.Path()),
		zap.Int("pages", pages),
		zap.String("track", track.Name()),
	)
	return track, nil
}
