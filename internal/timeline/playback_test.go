package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	calls []string
	time  float64
}

func (p *fakePlayer) Play()  { p.calls = append(p.calls, "play") }
func (p *fakePlayer) Pause() { p.calls = append(p.calls, "pause") }
func (p *fakePlayer) Stop()  { p.calls = append(p.calls, "stop") }

func (p *fakePlayer) SeekTo(seconds float64) {
	p.time = seconds
	p.calls = append(p.calls, "seek")
}

func (p *fakePlayer) CurrentTime() float64 { return p.time }

func TestPlaybackStateMachine(t *testing.T) {
	tl, _ := newTestTimeline(t)
	assert.Equal(t, Disabled, tl.PlaybackState())
	assert.False(t, tl.Seek(10))
	assert.False(t, tl.Play())

	tl.EnablePlayback(true)
	assert.Equal(t, Seeking, tl.PlaybackState())
	assert.True(t, tl.Seek(10))
	assert.Equal(t, 10, tl.CurrentFrame())
	assert.False(t, tl.Play())

	p := &fakePlayer{}
	tl.BindPlayer(p)
	assert.Equal(t, Stopped, tl.PlaybackState())

	steps := []struct {
		verb func() bool
		ok   bool
		want PlaybackState
	}{
		{tl.Pause, false, Stopped},
		{tl.Play, true, Playing},
		{tl.Play, false, Playing},
		{tl.Pause, true, Paused},
		{tl.Play, true, Playing},
		{tl.Stop, true, Stopped},
		{tl.Play, true, Playing},
	}
	for i, s := range steps {
		assert.Equal(t, s.ok, s.verb(), "step %d", i)
		assert.Equal(t, s.want, tl.PlaybackState(), "step %d", i)
	}

	tl.UnbindPlayer()
	assert.Equal(t, Seeking, tl.PlaybackState())
	assert.Equal(t, "stop", p.calls[len(p.calls)-1])

	tl.EnablePlayback(false)
	assert.Equal(t, Disabled, tl.PlaybackState())
}

func TestStopKeepsCurrentFrame(t *testing.T) {
	tl, _ := newTestTimeline(t)
	tl.EnablePlayback(true)
	tl.BindPlayer(&fakePlayer{})
	require.True(t, tl.Seek(42))
	require.True(t, tl.Play())
	require.True(t, tl.Stop())
	assert.Equal(t, 42, tl.CurrentFrame())
}

func TestSeekClampsAndNotifiesTracks(t *testing.T) {
	tl, clip := newTestTimeline(t, WithDuration(100))
	addClip(t, tl, "A", nil, 0, 10)
	addFolder(t, tl, "F", nil)
	addClip(t, tl, "B", nil, 0, 10)
	p := &fakePlayer{}
	tl.EnablePlayback(true)
	tl.BindPlayer(p)

	var frames int
	tl.Subscribe(func(e Event) {
		if e.Kind == CurrentFrameChanged {
			frames++
		}
	})

	require.True(t, tl.Seek(500))
	assert.Equal(t, 100, tl.CurrentFrame())
	assert.InDelta(t, 100.0/30.0, p.time, 1e-9)
	require.True(t, tl.Seek(-5))
	assert.Equal(t, 0, tl.CurrentFrame())

	assert.Equal(t, []int{100, 100, 0, 0}, clip.frames)
	assert.Equal(t, 2, frames)
}

func TestSyncReadsPlayerTime(t *testing.T) {
	tl, _ := newTestTimeline(t, WithDuration(300))
	p := &fakePlayer{}
	tl.EnablePlayback(true)
	tl.BindPlayer(p)

	p.time = 2
	tl.Sync()
	assert.Equal(t, 0, tl.CurrentFrame(), "sync only while playing")

	require.True(t, tl.Play())
	tl.Sync()
	assert.Equal(t, 60, tl.CurrentFrame())

	p.time = 100
	tl.Sync()
	assert.Equal(t, 300, tl.CurrentFrame())
}

func TestFormatFrame(t *testing.T) {
	tests := []struct {
		frame   int
		fps     float64
		display TimeDisplay
		want    string
	}{
		{12, 30, DisplayFrames, "12"},
		{12, 30, DisplaySeconds, "0.40s"},
		{12, 30, DisplayClock, "00:00:12"},
		{95, 30, DisplayClock, "00:03:05"},
		{30 * 125, 30, DisplayClock, "02:05:00"},
		{-15, 30, DisplayClock, "-00:00:15"},
		{50, 25, DisplaySeconds, "2.00s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFrame(tt.frame, tt.fps, tt.display))
	}

	d, err := ParseTimeDisplay("Clock")
	require.NoError(t, err)
	assert.Equal(t, DisplayClock, d)
	_, err = ParseTimeDisplay("beats")
	assert.Error(t, err)
}
