package timeline

import "math"

// Media is a time-ranged event owned by exactly one Track.
type Media struct {
	track    *Track
	start    int
	duration int

	CanSplit  bool
	CanDelete bool
	CanResize bool

	// Data holds archetype-specific per-media state.
	Data any
}

// NewMedia returns an unowned media with every capability enabled.
// Duration is clamped to at least one frame.
func NewMedia(start, duration int) *Media {
	return &Media{
		start:     start,
		duration:  max(duration, 1),
		CanSplit:  true,
		CanDelete: true,
		CanResize: true,
	}
}

func (m *Media) Track() *Track { return m.track }
func (m *Media) Start() int    { return m.start }
func (m *Media) Duration() int { return m.duration }
func (m *Media) End() int      { return m.start + m.duration }

func (m *Media) fps() float64 {
	if m.track != nil && m.track.timeline != nil {
		return m.track.timeline.FPS()
	}
	return DefaultFPS
}

func (m *Media) StartSeconds() float64    { return float64(m.start) / m.fps() }
func (m *Media) DurationSeconds() float64 { return float64(m.duration) / m.fps() }
func (m *Media) EndSeconds() float64      { return float64(m.End()) / m.fps() }

// Contains reports whether frame lies in [Start, End).
func (m *Media) Contains(frame int) bool {
	return frame >= m.start && frame < m.End()
}

func (m *Media) changed() {
	if m.track != nil {
		m.track.mediaChanged()
	}
}

// SetStart places the media at frame, keeping its duration.
func (m *Media) SetStart(frame int) {
	if frame == m.start {
		return
	}
	m.start = frame
	m.changed()
}

// Move shifts the start frame by delta. Snapping is left to the caller.
func (m *Media) Move(delta int) {
	if delta == 0 {
		return
	}
	m.start += delta
	m.changed()
}

// Resize sets the duration from the right edge, clamped to one frame.
// It reports false when the media cannot be resized.
func (m *Media) Resize(duration int) bool {
	if !m.CanResize {
		return false
	}
	duration = max(duration, 1)
	if duration != m.duration {
		m.duration = duration
		m.changed()
	}
	return true
}

// ResizeLeft moves the left edge to start while the end frame stays put.
// The edge can not cross the last frame of the media.
func (m *Media) ResizeLeft(start int) bool {
	if !m.CanResize {
		return false
	}
	end := m.End()
	start = min(start, end-1)
	if start != m.start {
		m.start = start
		m.duration = end - start
		m.changed()
	}
	return true
}

// Split cuts the media at frame. The original keeps [Start, frame) and the
// returned media covers [frame, End). It returns nil when splitting is not
// allowed, the frame is not strictly inside the media, or the owning track is
// full. The new media has no Data unless the archetype is a MediaSplitter.
func (m *Media) Split(frame int) *Media {
	if !m.CanSplit || frame <= m.start || frame >= m.End() {
		return nil
	}
	t := m.track
	if t != nil && !t.canAddMedia() {
		return nil
	}

	end := m.End()
	created := &Media{
		start:     frame,
		duration:  end - frame,
		CanSplit:  m.CanSplit,
		CanDelete: m.CanDelete,
		CanResize: m.CanResize,
	}
	m.duration = frame - m.start

	if t != nil {
		if s, ok := t.archetype.(MediaSplitter); ok {
			s.SplitMedia(m, created)
		}
		if err := t.AddMedia(created); err != nil {
			// canAddMedia was checked above; restore the original on failure
			m.duration = end - m.start
			return nil
		}
	}
	return created
}

// RescaleForFps converts start and duration so that wall-clock time is kept
// when the frame rate changes from oldFps to newFps.
func (m *Media) RescaleForFps(oldFps, newFps float64) {
	if oldFps <= 0 || newFps <= 0 || oldFps == newFps {
		return
	}
	ratio := newFps / oldFps
	m.start = int(math.Round(float64(m.start) * ratio))
	m.duration = max(int(math.Round(float64(m.duration)*ratio)), 1)
	m.changed()
}
