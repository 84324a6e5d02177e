package timeline

import (
	"math"

	"go.uber.org/zap"
)

// PlaybackState is the state of the playback state machine.
type PlaybackState int

const (
	// Disabled allows neither seeking nor playback.
	Disabled PlaybackState = iota
	// Seeking allows scrubbing while no player is bound.
	Seeking
	Stopped
	Playing
	Paused
)

func (s PlaybackState) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Seeking:
		return "seeking"
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "unknown"
}

// Player is the preview object driven by playback. The timeline calls it
// but does not own it.
type Player interface {
	Play()
	Pause()
	Stop()
	SeekTo(seconds float64)
	CurrentTime() float64
}

func (tl *Timeline) PlaybackState() PlaybackState { return tl.state }
func (tl *Timeline) Player() Player               { return tl.player }

func (tl *Timeline) setState(s PlaybackState) {
	if s == tl.state {
		return
	}
	tl.log.Debug("playback state", zap.Stringer("from", tl.state), zap.Stringer("to", s))
	tl.state = s
	tl.enqueue(Event{Kind: PlaybackStateChanged, Track: NoTrack})
}

// EnablePlayback turns playback support on or off. Enabled playback without
// a player only allows seeking.
func (tl *Timeline) EnablePlayback(on bool) {
	tl.playbackEnabled = on
	if !on {
		if tl.player != nil && (tl.state == Playing || tl.state == Paused) {
			tl.player.Stop()
		}
		tl.setState(Disabled)
		return
	}
	if tl.state != Disabled {
		return
	}
	if tl.player != nil {
		tl.setState(Stopped)
	} else {
		tl.setState(Seeking)
	}
}

// BindPlayer attaches p. With playback enabled the state becomes Stopped.
func (tl *Timeline) BindPlayer(p Player) {
	if p == nil {
		tl.UnbindPlayer()
		return
	}
	if tl.player != nil && tl.state == Playing {
		tl.player.Stop()
	}
	tl.player = p
	if tl.playbackEnabled {
		tl.setState(Stopped)
		p.SeekTo(tl.frameSeconds(tl.current))
	}
}

// UnbindPlayer detaches the player. With playback enabled the state falls
// back to Seeking.
func (tl *Timeline) UnbindPlayer() {
	if tl.player == nil {
		return
	}
	if tl.state == Playing || tl.state == Paused {
		tl.player.Stop()
	}
	tl.player = nil
	if tl.playbackEnabled {
		tl.setState(Seeking)
	}
}

// Play starts playback from Stopped or Paused.
func (tl *Timeline) Play() bool {
	if tl.player == nil || (tl.state != Stopped && tl.state != Paused) {
		return false
	}
	tl.player.Play()
	tl.setState(Playing)
	return true
}

// Pause pauses a playing timeline.
func (tl *Timeline) Pause() bool {
	if tl.player == nil || tl.state != Playing {
		return false
	}
	tl.player.Pause()
	tl.setState(Paused)
	return true
}

// Stop halts playback. The current frame is kept.
func (tl *Timeline) Stop() bool {
	if tl.player == nil || tl.state == Disabled {
		return false
	}
	tl.player.Stop()
	tl.setState(Stopped)
	return true
}

// Seek moves the current frame, clamped to [0, duration], and notifies every
// track whose archetype listens for frame changes. Seek is refused while
// playback is disabled.
func (tl *Timeline) Seek(frame int) bool {
	if tl.state == Disabled {
		return false
	}
	frame = min(max(frame, 0), tl.duration)
	if tl.player != nil {
		tl.player.SeekTo(tl.frameSeconds(frame))
	}
	tl.setCurrent(frame)
	return true
}

// SeekSeconds seeks to the frame nearest to seconds.
func (tl *Timeline) SeekSeconds(seconds float64) bool {
	return tl.Seek(int(math.Round(seconds * tl.FPS())))
}

// Sync pulls the current time back from a playing player.
func (tl *Timeline) Sync() {
	if tl.player == nil || tl.state != Playing {
		return
	}
	frame := int(math.Round(tl.player.CurrentTime() * tl.FPS()))
	tl.setCurrent(min(max(frame, 0), tl.duration))
}

func (tl *Timeline) frameSeconds(frame int) float64 {
	return float64(frame) / tl.FPS()
}

func (tl *Timeline) setCurrent(frame int) {
	if frame == tl.current {
		return
	}
	tl.begin()
	defer tl.end()
	tl.current = frame
	tl.lock()
	for _, id := range tl.flat {
		t := tl.tracks[id]
		if l, ok := t.archetype.(FrameListener); ok {
			l.OnTimelineCurrentFrameChanged(t, frame)
		}
	}
	tl.unlock()
	tl.enqueue(Event{Kind: CurrentFrameChanged, Track: NoTrack})
}
