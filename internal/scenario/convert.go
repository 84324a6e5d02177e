package scenario

import (
	"fmt"

	"github.com/ivlev/sequencer/internal/timeline"
)

// Export describes tl as a document. Tracks nest under their parents in
// flat order.
func Export(tl *timeline.Timeline) (*Document, error) {
	doc := &Document{
		Version:  DocumentVersion,
		FPS:      tl.FPS(),
		Duration: tl.DurationFrames(),
	}
	var err error
	doc.Tracks, err = exportTracks(tl, tl.RootTracks())
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func exportTracks(tl *timeline.Timeline, tracks []*timeline.Track) ([]Track, error) {
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		payload, err := tl.TrackPayload(t)
		if err != nil {
			return nil, err
		}
		entry := Track{
			Type:    t.Archetype().Name(),
			Name:    t.Name(),
			Title:   t.Title,
			Mute:    t.Mute(),
			Loop:    t.Loop(),
			Color:   FormatColor(t.Color),
			Payload: payload,
		}
		for _, m := range t.Media() {
			entry.Media = append(entry.Media, Media{
				Start:    m.Start(),
				Duration: m.Duration(),
				Seconds:  m.StartSeconds(),
			})
		}
		if entry.Children, err = exportTracks(tl, t.Children()); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// Build creates a new timeline from doc. Tracks without a payload get the
// listed media with default capabilities and no archetype data.
func Build(reg *timeline.Registry, doc *Document, opts ...timeline.Option) (*timeline.Timeline, error) {
	if err := validate(reg, doc.Tracks); err != nil {
		return nil, err
	}
	tl := timeline.New(reg, opts...)
	if doc.FPS > 0 {
		if err := tl.SetFPS(doc.FPS); err != nil {
			return nil, err
		}
	}
	if doc.Duration > 0 {
		if err := tl.SetDuration(doc.Duration); err != nil {
			return nil, err
		}
	}
	if err := buildTracks(tl, nil, doc.Tracks); err != nil {
		return nil, err
	}
	return tl, nil
}

func validate(reg *timeline.Registry, tracks []Track) error {
	for _, entry := range tracks {
		if _, ok := reg.ByName(entry.Type); !ok {
			return fmt.Errorf("track %q: unknown type %q", entry.Name, entry.Type)
		}
		if entry.Color != "" {
			if _, err := ParseColor(entry.Color); err != nil {
				return fmt.Errorf("track %q: %w", entry.Name, err)
			}
		}
		if err := validate(reg, entry.Children); err != nil {
			return err
		}
	}
	return nil
}

func buildTracks(tl *timeline.Timeline, parent *timeline.Track, tracks []Track) error {
	for _, entry := range tracks {
		arch, _ := tl.Registry().ByName(entry.Type)
		t, err := tl.AddTrack(arch, timeline.CreateOptions{Name: entry.Name, Title: entry.Title, Parent: parent})
		if err != nil {
			return fmt.Errorf("track %q: %w", entry.Name, err)
		}

		if len(entry.Payload) > 0 {
			err = tl.SetTrackPayload(t, entry.Payload)
		} else {
			err = tl.EditTrack(t, "Import Media", func() error {
				for _, m := range entry.Media {
					if err := t.AddMedia(timeline.NewMedia(m.Start, m.Duration)); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err != nil {
			return fmt.Errorf("track %q: %w", entry.Name, err)
		}

		t.SetMute(entry.Mute)
		t.SetLoop(entry.Loop)
		if entry.Color != "" {
			t.Color, _ = ParseColor(entry.Color)
		}
		if err := buildTracks(tl, t, entry.Children); err != nil {
			return err
		}
	}
	return nil
}
