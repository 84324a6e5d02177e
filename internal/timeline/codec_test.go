package timeline

import (
	"encoding/binary"
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/sequencer/internal/stream"
)

func buildSample(t *testing.T, tl *Timeline) {
	t.Helper()
	require.NoError(t, tl.SetFPS(24))
	require.NoError(t, tl.SetDuration(480))

	fx := addFolder(t, tl, "FX", nil)
	fx.Color = color.RGBA{R: 200, G: 10, B: 30, A: 255}
	sparks := addClip(t, tl, "Sparks", fx, 12, 36)
	sparks.SetLoop(true)
	sparks.Data = "emitter"
	require.NoError(t, sparks.AddMedia(NewMedia(100, 8)))
	smoke := addClip(t, tl, "Smoke", sparks, -4, 2)
	smoke.SetMute(true)
	smoke.Media()[0].CanSplit = false
	addClip(t, tl, "Camera", nil, 0, 480)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	src, _ := newTestTimeline(t)
	buildSample(t, src)

	first, err := src.Save()
	require.NoError(t, err)

	dst, clip := newTestTimeline(t)
	require.NoError(t, dst.Load(first))

	second, err := dst.Save()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, names(src.Tracks()), names(dst.Tracks()))
	assert.InDelta(t, 24.0, dst.FPS(), 1e-6)
	assert.Equal(t, 480, dst.DurationFrames())
	assert.False(t, dst.IsModified())

	for i, want := range src.Tracks() {
		got := dst.TrackAt(i)
		assert.Equal(t, want.Flags, got.Flags, want.Name())
		assert.Equal(t, want.Color, got.Color, want.Name())
		assert.Equal(t, want.Data, got.Data, want.Name())
		if want.Parent() == nil {
			assert.Nil(t, got.Parent())
		} else {
			assert.Equal(t, want.Parent().Name(), got.Parent().Name())
		}
		require.Equal(t, want.MediaCount(), got.MediaCount())
		for j, m := range want.Media() {
			gm := got.Media()[j]
			assert.Equal(t, m.Start(), gm.Start())
			assert.Equal(t, m.Duration(), gm.Duration())
			assert.Equal(t, m.CanSplit, gm.CanSplit)
		}
	}
	assert.Len(t, clip.loadedOK, 3)

	smoke := dst.FindTrack("Smoke")
	assert.True(t, smoke.Mute())
	assert.False(t, smoke.Loop())
	assert.True(t, dst.FindTrack("Sparks").Loop())
}

func TestLoadResolvesForwardParentReferences(t *testing.T) {
	w := stream.NewWriter()
	w.Int32(CurrentVersion)
	w.Float32(30)
	w.Int32(100)
	w.Int32(2)

	// child first, pointing at index 1
	w.Byte(1)
	w.Byte(0)
	w.Int32(1)
	w.Int32(0)
	w.String("Child")
	w.Color(DefaultTrackColor)
	WriteMediaList(w, nil)
	w.String("")

	w.Byte(2)
	w.Byte(0)
	w.Int32(-1)
	w.Int32(1)
	w.String("Parent")
	w.Color(DefaultTrackColor)
	require.NoError(t, w.Err())

	tl, _ := newTestTimeline(t)
	require.NoError(t, tl.Load(w.Bytes()))
	child := tl.FindTrack("Child")
	require.NotNil(t, child)
	assert.Equal(t, "Parent", child.Parent().Name())
	assert.Equal(t, 0, child.Index())
}

func legacyV1(t *testing.T, typeID uint8) []byte {
	t.Helper()
	w := stream.NewWriter()
	w.Int32(1)
	w.Float32(30)
	w.Int32(90)
	w.Int32(2)

	w.Byte(2)
	w.Byte(0)
	w.Int32(-1)
	w.Int32(1)
	w.String("Group")

	w.Byte(typeID)
	w.Byte(1)
	w.Int32(0)
	w.Int32(0)
	w.String("Old")
	WriteMediaList(w, []*Media{NewMedia(5, 10)})
	w.String("legacy")
	require.NoError(t, w.Err())
	return w.Bytes()
}

func TestLoadLegacyVersionOne(t *testing.T) {
	tl, _ := newTestTimeline(t)
	require.NoError(t, tl.Load(legacyV1(t, 1)))

	old := tl.FindTrack("Old")
	require.NotNil(t, old)
	assert.True(t, old.Mute())
	assert.False(t, old.Loop())
	assert.Equal(t, DefaultTrackColor, old.Color)
	assert.Equal(t, "Group", old.Parent().Name())
	assert.Equal(t, "legacy", old.Data)
	require.Equal(t, 1, old.MediaCount())
	assert.Equal(t, 5, old.Media()[0].Start())

	upgraded, err := tl.Save()
	require.NoError(t, err)
	v, err := PeekVersion(upgraded)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, v)

	again, _ := newTestTimeline(t)
	require.NoError(t, again.Load(upgraded))
	stable, err := again.Save()
	require.NoError(t, err)
	assert.Equal(t, upgraded, stable)
}

func TestLoadLegacyVersionTwo(t *testing.T) {
	w := stream.NewWriter()
	w.Int32(2)
	w.Float32(25)
	w.Int32(50)
	w.Int32(1)
	w.Byte(1)
	w.Byte(byte(FlagLoop))
	w.Int32(-1)
	w.Int32(0)
	w.String("Looping")
	w.Color(color.RGBA{R: 1, G: 2, B: 3, A: 4})
	WriteMediaList(w, nil)
	w.String("")

	tl, _ := newTestTimeline(t)
	require.NoError(t, tl.Load(w.Bytes()))
	tr := tl.FindTrack("Looping")
	require.NotNil(t, tr)
	assert.True(t, tr.Loop())
	assert.False(t, tr.Mute())
	assert.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 4}, tr.Color)
}

func TestLoadRejectsUnknownTrackType(t *testing.T) {
	tl, _ := newTestTimeline(t)
	addClip(t, tl, "Existing", nil, 0, 10)
	tl.MarkClean()

	err := tl.Load(legacyV1(t, 255))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTrackType)
	var typed *UnknownTrackTypeError
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, uint8(255), typed.TypeID)
	assert.Contains(t, err.Error(), "255")

	assert.Equal(t, []string{"Existing"}, names(tl.Tracks()))
	assert.Nil(t, tl.FindTrack("Group"))
	assert.False(t, tl.IsModified())

	fresh, _ := newTestTimeline(t)
	require.Error(t, fresh.Load(legacyV1(t, 255)))
	assert.Zero(t, fresh.Len())
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	for _, v := range []int32{0, 5, -1, 99} {
		w := stream.NewWriter()
		w.Int32(v)
		w.Float32(30)
		w.Int32(10)
		w.Int32(0)

		tl, _ := newTestTimeline(t)
		err := tl.Load(w.Bytes())
		require.Error(t, err, "version %d", v)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
		var typed *UnsupportedVersionError
		require.True(t, errors.As(err, &typed))
		assert.Equal(t, v, typed.Version)
	}
}

func TestLoadRejectsCorruptStreams(t *testing.T) {
	tl, _ := newTestTimeline(t)
	buildSample(t, tl)
	data, err := tl.Save()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", data[:6]},
		{"truncated tracks", data[:len(data)-3]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst, _ := newTestTimeline(t)
			addFolder(t, dst, "Before", nil)
			err := dst.Load(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptStream)
			assert.Equal(t, []string{"Before"}, names(dst.Tracks()))
		})
	}
}

func TestLoadRejectsParentCycle(t *testing.T) {
	w := stream.NewWriter()
	w.Int32(CurrentVersion)
	w.Float32(30)
	w.Int32(10)
	w.Int32(2)
	for i, parent := range []int32{1, 0} {
		w.Byte(2)
		w.Byte(0)
		w.Int32(parent)
		w.Int32(1)
		w.String([]string{"A", "B"}[i])
		w.Color(DefaultTrackColor)
	}

	tl, _ := newTestTimeline(t)
	err := tl.Load(w.Bytes())
	assert.ErrorIs(t, err, ErrCorruptStream)
	assert.Zero(t, tl.Len())
}

func TestLoadUniquifiesDuplicateNames(t *testing.T) {
	w := stream.NewWriter()
	w.Int32(CurrentVersion)
	w.Float32(30)
	w.Int32(10)
	w.Int32(2)
	for range 2 {
		w.Byte(2)
		w.Byte(0)
		w.Int32(-1)
		w.Int32(0)
		w.String("Same")
		w.Color(DefaultTrackColor)
	}

	tl, _ := newTestTimeline(t)
	require.NoError(t, tl.Load(w.Bytes()))
	assert.Equal(t, []string{"Same", "Same 1"}, names(tl.Tracks()))
}

func TestLoadClampsFps(t *testing.T) {
	w := stream.NewWriter()
	w.Int32(CurrentVersion)
	w.Float32(5000)
	w.Int32(0)
	w.Int32(0)

	tl, _ := newTestTimeline(t)
	require.NoError(t, tl.Load(w.Bytes()))
	assert.InDelta(t, MaxFPS, tl.FPS(), 1e-6)
	assert.Equal(t, 1, tl.DurationFrames())
}

type tableExt struct {
	header  string
	entries []int32
	failOn  bool
}

func (e *tableExt) LoadTimelineData(_ int32, r *stream.Reader) error {
	e.header = r.String()
	return r.Err()
}

func (e *tableExt) SaveTimelineData(w *stream.Writer) error {
	w.String(e.header)
	return nil
}

func (e *tableExt) LoadTimelineCustomData(_ int32, tl *Timeline, r *stream.Reader) error {
	n := int(r.Int32())
	e.entries = e.entries[:0]
	for range n {
		idx := r.Int32()
		if tl.TrackAt(int(idx)) == nil {
			return errors.New("bad track index")
		}
		e.entries = append(e.entries, idx)
	}
	return r.Err()
}

func (e *tableExt) SaveTimelineCustomData(_ *Timeline, w *stream.Writer) error {
	w.Int32(int32(len(e.entries)))
	for _, idx := range e.entries {
		w.Int32(idx)
	}
	return nil
}

func TestExtensionDataRoundTripAndRollback(t *testing.T) {
	ext := &tableExt{header: "v", entries: []int32{0, 1}}
	src, _ := newTestTimeline(t, WithExtension(ext))
	addClip(t, src, "A", nil, 0, 3)
	addClip(t, src, "B", nil, 0, 3)
	data, err := src.Save()
	require.NoError(t, err)

	got := &tableExt{}
	dst, _ := newTestTimeline(t, WithExtension(got))
	require.NoError(t, dst.Load(data))
	assert.Equal(t, "v", got.header)
	assert.Equal(t, []int32{0, 1}, got.entries)

	// a stream whose custom table points past the track list fails and
	// leaves the extension as it was
	ext.entries = []int32{7}
	ext.header = "changed"
	bad, err := src.Save()
	require.NoError(t, err)
	require.Error(t, dst.Load(bad))
	assert.Equal(t, "v", got.header)
	assert.Equal(t, []int32{0, 1}, got.entries)
	assert.Equal(t, []string{"A", "B"}, names(dst.Tracks()))
}

func TestLoadVersionThreeReadsTrailingData(t *testing.T) {
	ext := &tableExt{header: "h", entries: []int32{1}}
	src, _ := newTestTimeline(t, WithExtension(ext))
	addClip(t, src, "A", nil, 0, 3)
	addClip(t, src, "B", nil, 0, 3)
	data, err := src.Save()
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(data, 3)

	got := &tableExt{}
	dst, _ := newTestTimeline(t, WithExtension(got))
	require.NoError(t, dst.Load(data))
	assert.Equal(t, "h", got.header)
	assert.Equal(t, []int32{1}, got.entries)
}
