package scenario

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/colornames"

	"github.com/ivlev/sequencer/internal/archetypes"
	"github.com/ivlev/sequencer/internal/timeline"
)

func sampleTimeline(t *testing.T) *timeline.Timeline {
	t.Helper()
	tl := timeline.New(archetypes.Registry(), timeline.WithFPS(24), timeline.WithDuration(240))
	folder, err := tl.AddTrackOfType(archetypes.FolderTypeID, timeline.CreateOptions{Name: "Act 1"})
	require.NoError(t, err)
	folder.Color = colornames.Steelblue

	cues, err := tl.AddTrackOfType(archetypes.EventTypeID, timeline.CreateOptions{
		Name: "Cues", Title: "intro", Parent: folder, Start: 12, Duration: 48,
	})
	require.NoError(t, err)
	cues.SetMute(true)
	cues.Color = color.RGBA{R: 1, G: 2, B: 3, A: 128}

	_, err = tl.AddTrackOfType(archetypes.EventTypeID, timeline.CreateOptions{Name: "Loose"})
	require.NoError(t, err)
	return tl
}

func TestExportBuildRoundTrip(t *testing.T) {
	src := sampleTimeline(t)
	doc, err := Export(src)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Count())
	require.Len(t, doc.Tracks, 2)
	assert.Equal(t, "steelblue", doc.Tracks[0].Color)
	assert.Equal(t, "#01020380", doc.Tracks[0].Children[0].Color)
	assert.Equal(t, []Media{{Start: 12, Duration: 48, Seconds: 0.5}}, doc.Tracks[0].Children[0].Media)

	data, err := Marshal(doc)
	require.NoError(t, err)
	parsed, err := Unmarshal(data)
	require.NoError(t, err)

	built, err := Build(archetypes.Registry(), parsed)
	require.NoError(t, err)

	want, err := src.Save()
	require.NoError(t, err)
	got, err := built.Save()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	cue := built.FindTrack("Cues")
	require.NotNil(t, cue)
	assert.Equal(t, "intro", archetypes.CueOf(cue.Media()[0]).Name)
}

func TestBuildWithoutPayload(t *testing.T) {
	doc, err := Unmarshal([]byte(`
version: "1.0"
fps: 30
duration: 90
tracks:
  - type: Folder
    name: Group
    color: tomato
    children:
      - type: Event
        name: Hits
        loop: true
        media:
          - {start: 0, duration: 10}
          - {start: 30, duration: 5}
`))
	require.NoError(t, err)

	tl, err := Build(archetypes.Registry(), doc)
	require.NoError(t, err)
	assert.Equal(t, 90, tl.DurationFrames())
	group := tl.FindTrack("Group")
	assert.Equal(t, colornames.Tomato, group.Color)
	hits := tl.FindTrack("Hits")
	assert.Same(t, group, hits.Parent())
	assert.True(t, hits.Loop())
	require.Equal(t, 2, hits.MediaCount())
	assert.Equal(t, 30, hits.Media()[1].Start())
}

func TestBuildRejectsBadDocuments(t *testing.T) {
	reg := archetypes.Registry()
	_, err := Build(reg, &Document{Version: "1.0", Tracks: []Track{{Type: "Synth", Name: "X"}}})
	assert.ErrorContains(t, err, "Synth")

	_, err = Build(reg, &Document{Version: "1.0", Tracks: []Track{{Type: "Folder", Name: "X", Color: "#12"}}})
	assert.ErrorContains(t, err, "bad color")

	_, err = Unmarshal([]byte("fps: 30\n"))
	assert.ErrorContains(t, err, "missing version")
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"red", color.RGBA{R: 255, A: 255}},
		{"#fff", color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{"#102030", color.RGBA{R: 16, G: 32, B: 48, A: 255}},
		{"#10203040", color.RGBA{R: 16, G: 32, B: 48, A: 64}},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseColor("ultraviolet")
	assert.Error(t, err)

	c := color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff}
	back, err := ParseColor(FormatColor(c))
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestWriteReadAndFindLatest(t *testing.T) {
	dir := t.TempDir()
	doc := &Document{Version: DocumentVersion, FPS: 30, Duration: 10}

	older := GeneratePath(dir, time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC))
	newer := GeneratePath(dir, time.Date(2026, 2, 13, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join(dir, "scenario_2026-02-12_10-00-00.yaml"), older)

	require.NoError(t, Write(doc, older))
	require.NoError(t, Write(doc, newer))
	now := time.Now()
	require.NoError(t, os.Chtimes(older, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, now, now))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	latest, err := FindLatest(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, latest)

	back, err := Read(latest)
	require.NoError(t, err)
	assert.Equal(t, doc.Version, back.Version)
	assert.Equal(t, doc.Duration, back.Duration)
	assert.Empty(t, back.Tracks)

	_, err = FindLatest(t.TempDir())
	assert.Error(t, err)
}
