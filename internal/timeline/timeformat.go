package timeline

import (
	"fmt"
	"math"
	"strings"
)

// TimeDisplay selects how frame positions are rendered.
type TimeDisplay int

const (
	DisplayFrames TimeDisplay = iota
	DisplaySeconds
	DisplayClock
)

func (d TimeDisplay) String() string {
	switch d {
	case DisplaySeconds:
		return "seconds"
	case DisplayClock:
		return "clock"
	default:
		return "frames"
	}
}

// ParseTimeDisplay accepts the names produced by TimeDisplay.String.
func ParseTimeDisplay(s string) (TimeDisplay, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "frames":
		return DisplayFrames, nil
	case "seconds":
		return DisplaySeconds, nil
	case "clock":
		return DisplayClock, nil
	}
	return DisplayFrames, fmt.Errorf("unknown time display %q", s)
}

// FormatFrame renders frame in the timeline's display mode.
func (tl *Timeline) FormatFrame(frame int) string {
	return FormatFrame(frame, tl.FPS(), tl.display)
}

// FormatFrame renders frame as a frame number, seconds ("0.40s") or clock
// time ("mm:ss:ff").
func FormatFrame(frame int, fps float64, d TimeDisplay) string {
	switch d {
	case DisplaySeconds:
		return fmt.Sprintf("%.2fs", float64(frame)/fps)
	case DisplayClock:
		sign := ""
		if frame < 0 {
			sign = "-"
			frame = -frame
		}
		secs := math.Floor(float64(frame) / fps)
		ff := frame - int(math.Round(secs*fps))
		whole := int(secs)
		return fmt.Sprintf("%s%02d:%02d:%02d", sign, whole/60, whole%60, max(ff, 0))
	default:
		return fmt.Sprintf("%d", frame)
	}
}
