package archetypes

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/sequencer/internal/timeline"
)

func newTimeline(t *testing.T, opts ...timeline.Option) *timeline.Timeline {
	t.Helper()
	return timeline.New(Registry(), opts...)
}

func TestRegistryOrder(t *testing.T) {
	var got []string
	for _, a := range Registry().All() {
		got = append(got, a.Name())
	}
	assert.Equal(t, []string{"Event", "Folder", "Storyboard"}, got)
}

func TestEventCuesRoundTrip(t *testing.T) {
	tl := newTimeline(t)
	tr, err := tl.AddTrackOfType(EventTypeID, timeline.CreateOptions{Name: "Bursts", Title: "burst", Start: 0, Duration: 40})
	require.NoError(t, err)
	CueOf(tr.Media()[0]).Value = 2.5

	second := tr.Media()[0].Split(10)
	require.NotNil(t, second)
	CueOf(second).Name = "fade"
	assert.Equal(t, "burst", CueOf(tr.Media()[0]).Name, "split copies the cue")

	folder, err := tl.AddTrackOfType(FolderTypeID, timeline.CreateOptions{Name: "Group"})
	require.NoError(t, err)
	folder.Data = true

	data, err := tl.Save()
	require.NoError(t, err)

	dst := newTimeline(t)
	require.NoError(t, dst.Load(data))
	got := dst.FindTrack("Bursts")
	require.NotNil(t, got)
	require.Equal(t, 2, got.MediaCount())
	assert.Equal(t, Cue{Name: "burst", Value: 2.5}, *CueOf(got.Media()[0]))
	assert.Equal(t, "fade", CueOf(got.Media()[1]).Name)
	assert.True(t, Collapsed(dst.FindTrack("Group")))
}

func TestEventTracksActiveCue(t *testing.T) {
	tl := newTimeline(t)
	tr, err := tl.AddTrackOfType(EventTypeID, timeline.CreateOptions{Title: "boom", Start: 5, Duration: 5})
	require.NoError(t, err)
	tl.EnablePlayback(true)

	require.True(t, tl.Seek(7))
	assert.Equal(t, "boom", tr.Data.(*EventState).Active)
	require.True(t, tl.Seek(20))
	assert.Equal(t, "", tr.Data.(*EventState).Active)
}

func TestStoryboardTitleFromSource(t *testing.T) {
	tl := newTimeline(t)
	tr, err := tl.AddTrackOfType(StoryboardTypeID, timeline.CreateOptions{Name: "Board"})
	require.NoError(t, err)
	BoardOf(tr).Source = "/decks/pitch deck.pdf"
	m := timeline.NewMedia(0, 30)
	m.Data = &Panel{Page: 0, Width: 612, Height: 792}
	require.NoError(t, tr.AddMedia(m))

	data, err := tl.Save()
	require.NoError(t, err)
	dst := newTimeline(t)
	require.NoError(t, dst.Load(data))

	got := dst.FindTrack("Board")
	assert.Equal(t, "pitch deck", got.Title)
	assert.Equal(t, int32(72), BoardOf(got).DPI)
	assert.Equal(t, &Panel{Page: 0, Width: 612, Height: 792}, got.Media()[0].Data)
}

func TestOverridesPersistAndUndo(t *testing.T) {
	ext := NewOverrides()
	ext.Label = "Scene 1"
	var pushed []timeline.Command
	sink := sinkFunc(func(c timeline.Command) { pushed = append(pushed, c) })
	tl := newTimeline(t, timeline.WithExtension(ext), timeline.WithUndoSink(sink))

	a, err := tl.AddTrackOfType(EventTypeID, timeline.CreateOptions{Name: "A"})
	require.NoError(t, err)
	b, err := tl.AddTrackOfType(EventTypeID, timeline.CreateOptions{Name: "B"})
	require.NoError(t, err)

	require.NoError(t, ext.Set(tl, b, "rate", 12))
	v, ok := ext.Get(b, "rate")
	require.True(t, ok)
	assert.Equal(t, float32(12), v)
	_, ok = ext.Get(a, "rate")
	assert.False(t, ok)

	data, err := tl.Save()
	require.NoError(t, err)
	loaded := NewOverrides()
	dst := timeline.New(Registry(), timeline.WithExtension(loaded))
	require.NoError(t, dst.Load(data))
	assert.Equal(t, "Scene 1", loaded.Label)
	assert.Equal(t, map[string]float32{"rate": 12}, loaded.Params(dst.FindTrack("B")))

	last := pushed[len(pushed)-1]
	require.NoError(t, last.Revert())
	_, ok = ext.Get(b, "rate")
	assert.False(t, ok)
	require.NoError(t, last.Apply())
	_, ok = ext.Get(b, "rate")
	assert.True(t, ok)
}

func TestOverridesRejectCorruptTable(t *testing.T) {
	ext := NewOverrides()
	tl := newTimeline(t, timeline.WithExtension(ext))
	a, err := tl.AddTrackOfType(EventTypeID, timeline.CreateOptions{Name: "A"})
	require.NoError(t, err)
	require.NoError(t, ext.Set(tl, a, "rate", 3))
	data, err := tl.Save()
	require.NoError(t, err)

	// the table is the last 4+8+(4+4)+4 bytes: rows, index, count, "rate", value
	table := len(data) - 24
	tests := []struct {
		name  string
		patch func(b []byte)
	}{
		{"huge param count", func(b []byte) { binary.LittleEndian.PutUint32(b[table+8:], 0x7fffffff) }},
		{"negative param count", func(b []byte) { binary.LittleEndian.PutUint32(b[table+8:], 0xffffffff) }},
		{"huge row count", func(b []byte) { binary.LittleEndian.PutUint32(b[table:], 0x7fffffff) }},
		{"bad track index", func(b []byte) { binary.LittleEndian.PutUint32(b[table+4:], 9) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := append([]byte(nil), data...)
			tt.patch(bad)

			loaded := NewOverrides()
			dst := timeline.New(Registry(), timeline.WithExtension(loaded))
			err := dst.Load(bad)
			require.Error(t, err)
			assert.ErrorIs(t, err, timeline.ErrCorruptStream)
			assert.Zero(t, dst.Len())
		})
	}
}

func TestOverridesLegacyStreamWithoutTable(t *testing.T) {
	tl := newTimeline(t, timeline.WithExtension(NewOverrides()))
	_, err := tl.AddTrackOfType(FolderTypeID, timeline.CreateOptions{Name: "Group"})
	require.NoError(t, err)
	data, err := tl.Save()
	require.NoError(t, err)
	// drop the empty table and mark the stream as version 3
	data = data[:len(data)-4]
	binary.LittleEndian.PutUint32(data, 3)

	loaded := NewOverrides()
	dst := timeline.New(Registry(), timeline.WithExtension(loaded))
	require.NoError(t, dst.Load(data))
	assert.NotNil(t, dst.FindTrack("Group"))
	assert.Empty(t, loaded.Params(dst.FindTrack("Group")))

	// the current version always carries the table
	binary.LittleEndian.PutUint32(data, uint32(timeline.CurrentVersion))
	assert.Error(t, dst.Load(data))
}

type sinkFunc func(timeline.Command)

func (f sinkFunc) Push(c timeline.Command) { f(c) }
