package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditTrackUndoSymmetry(t *testing.T) {
	sink := &recorder{}
	tl, _ := newTestTimeline(t, WithUndoSink(sink))
	tr := addClip(t, tl, "A", nil, 10, 20)
	sink.cmds = nil

	err := tl.EditTrack(tr, "Tweak", func() error {
		tr.SetMute(true)
		tr.Data = "after"
		tr.Media()[0].Move(5)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, sink.cmds, 1)
	cmd := sink.cmds[0]
	assert.Equal(t, "Tweak", cmd.Name())

	after, err := tl.Save()
	require.NoError(t, err)

	require.NoError(t, cmd.Revert())
	assert.False(t, tr.Mute())
	assert.Equal(t, "", tr.Data)
	assert.Equal(t, 10, tr.Media()[0].Start())

	require.NoError(t, cmd.Apply())
	again, err := tl.Save()
	require.NoError(t, err)
	assert.Equal(t, after, again)
	assert.Len(t, sink.cmds, 1, "replaying must not record")
}

func TestIdenticalSnapshotsEmitNothing(t *testing.T) {
	sink := &recorder{}
	tl, _ := newTestTimeline(t, WithUndoSink(sink))
	tr := addClip(t, tl, "A", nil, 0, 20)
	sink.cmds = nil

	require.NoError(t, tl.EditTrack(tr, "Noop", func() error {
		m := tr.Media()[0]
		m.Move(3)
		m.Move(-3)
		return nil
	}))
	assert.Empty(t, sink.cmds)

	require.NoError(t, tl.SetFPS(tl.FPS()))
	assert.Empty(t, sink.cmds)
}

func TestAddRemoveUndo(t *testing.T) {
	sink := &recorder{}
	tl, _ := newTestTimeline(t, WithUndoSink(sink))
	group := addFolder(t, tl, "Group", nil)
	child := addClip(t, tl, "Child", group, 4, 8)
	child.Data = "payload"
	addClip(t, tl, "Tail", nil, 0, 1)
	sink.cmds = nil

	require.NoError(t, tl.RemoveTrack(group))
	require.Len(t, sink.cmds, 1)
	remove := sink.cmds[0]
	assert.Equal(t, []string{"Tail"}, names(tl.Tracks()))

	require.NoError(t, remove.Revert())
	assert.Equal(t, []string{"Group", "Child", "Tail"}, names(tl.Tracks()))
	restored := tl.FindTrack("Child")
	assert.Equal(t, child.ID(), restored.ID())
	assert.Equal(t, "Group", restored.Parent().Name())
	assert.Equal(t, "payload", restored.Data)
	assert.Equal(t, 4, restored.Media()[0].Start())

	require.NoError(t, remove.Apply())
	assert.Equal(t, []string{"Tail"}, names(tl.Tracks()))
}

func TestReorderAndRenameUndo(t *testing.T) {
	sink := &recorder{}
	tl, _ := newTestTimeline(t, WithUndoSink(sink))
	a := addFolder(t, tl, "A", nil)
	b := addFolder(t, tl, "B", nil)
	sink.cmds = nil

	require.NoError(t, tl.SetParent(b, a))
	reparent := sink.last(t)
	_, err := tl.Rename(a, "Renamed")
	require.NoError(t, err)
	rename := sink.last(t)

	require.NoError(t, rename.Revert())
	assert.Equal(t, "A", a.Name())
	require.NoError(t, reparent.Revert())
	assert.Nil(t, b.Parent())
	assert.False(t, a.HasChildren())

	require.NoError(t, reparent.Apply())
	assert.Same(t, a, b.Parent())
	require.NoError(t, rename.Apply())
	assert.Equal(t, "Renamed", a.Name())
}

func TestSetFpsRescalesAndUndoes(t *testing.T) {
	sink := &recorder{}
	tl, _ := newTestTimeline(t, WithUndoSink(sink), WithDuration(300))
	tr := addClip(t, tl, "A", nil, 30, 15)
	m := tr.Media()[0]
	assert.InDelta(t, 1.0, m.StartSeconds(), 1e-9)
	sink.cmds = nil

	require.NoError(t, tl.SetFPS(60))
	assert.Equal(t, 60, m.Start())
	assert.Equal(t, 30, m.Duration())
	assert.InDelta(t, 1.0, m.StartSeconds(), 1e-9)
	assert.Equal(t, 600, tl.DurationFrames())

	cmd := sink.last(t)
	_, ok := cmd.(*EditFpsCommand)
	require.True(t, ok)

	require.NoError(t, cmd.Revert())
	assert.InDelta(t, 30.0, tl.FPS(), 1e-6)
	assert.Equal(t, 300, tl.DurationFrames())
	// restored in place, so the same track value is still live
	require.Same(t, tr, tl.FindTrack("A"))
	assert.Equal(t, 30, tr.Media()[0].Start())

	require.NoError(t, cmd.Apply())
	assert.Equal(t, 60, tr.Media()[0].Start())
}

func TestSetFpsClamps(t *testing.T) {
	tl, _ := newTestTimeline(t)
	require.NoError(t, tl.SetFPS(0))
	assert.InDelta(t, MinFPS, tl.FPS(), 1e-6)
	require.NoError(t, tl.SetFPS(1e6))
	assert.InDelta(t, MaxFPS, tl.FPS(), 1e-3)
}

func TestUndoBatchesNestIntoOneComposite(t *testing.T) {
	sink := &recorder{}
	tl, _ := newTestTimeline(t, WithUndoSink(sink))

	tl.BeginUndoBatch("Outer")
	addFolder(t, tl, "A", nil)
	tl.BeginUndoBatch("Inner")
	addFolder(t, tl, "B", nil)
	tl.EndUndoBatch()
	assert.Empty(t, sink.cmds)
	tl.EndUndoBatch()

	require.Len(t, sink.cmds, 1)
	comp := sink.cmds[0].(*CompositeCommand)
	assert.Equal(t, "Outer", comp.Name())
	assert.Len(t, comp.Commands, 2)

	require.NoError(t, comp.Revert())
	assert.Zero(t, tl.Len())
	require.NoError(t, comp.Apply())
	assert.Equal(t, []string{"A", "B"}, names(tl.Tracks()))
}

func TestTickBatchingFlushesOnce(t *testing.T) {
	sink := &recorder{}
	tl, _ := newTestTimeline(t, WithUndoSink(sink), WithTickBatching())
	tr := addClip(t, tl, "A", nil, 0, 30)

	for _, frame := range []int{10, 20} {
		media := tr.Media()
		_, err := tl.SplitMedia(media[len(media)-1], frame)
		require.NoError(t, err)
	}
	assert.Empty(t, sink.cmds)
	assert.Equal(t, 3, tl.PendingUndo())

	tl.FlushUndo()
	require.Len(t, sink.cmds, 1)
	assert.Zero(t, tl.PendingUndo())

	tl.FlushUndo()
	assert.Len(t, sink.cmds, 1)
}

func TestSetDurationUndo(t *testing.T) {
	sink := &recorder{}
	tl, _ := newTestTimeline(t, WithUndoSink(sink))
	require.NoError(t, tl.SetDuration(-5))
	assert.Equal(t, 1, tl.DurationFrames())

	cmd := sink.last(t)
	_, ok := cmd.(*EditTimelineCommand)
	require.True(t, ok)
	require.NoError(t, cmd.Revert())
	assert.Equal(t, DefaultDuration, tl.DurationFrames())
}

func TestClearDropsPendingTick(t *testing.T) {
	sink := &recorder{}
	tl, _ := newTestTimeline(t, WithUndoSink(sink), WithTickBatching())
	addClip(t, tl, "A", nil, 0, 30)
	require.Positive(t, tl.PendingUndo())

	require.NoError(t, tl.Clear())
	assert.Zero(t, tl.PendingUndo())
	tl.FlushUndo()
	assert.Empty(t, sink.cmds)
}
