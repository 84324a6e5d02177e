package source

import (
	"math"
	"math/rand"
	"time"
)

// Planner spreads pages over a time span. Every page gets the same dwell
// time, clamped to [MinDwell, MaxDwell] seconds, after a Lead-in.
type Planner struct {
	MinDwell float64
	MaxDwell float64
	Lead     float64

	// Jitter lets each page's dwell drift from the previous page's by up
	// to ±Jitter (0.15 is ±15%). The total is kept.
	Jitter float64
	Rand   *rand.Rand
}

func DefaultPlanner() Planner {
	return Planner{MinDwell: 1, MaxDwell: 10}
}

// Slot is a frame range on the timeline.
type Slot struct {
	Start    int
	Duration int
}

// Dwell returns the seconds each of pages gets out of total.
func (p Planner) Dwell(total float64, pages int) float64 {
	if pages <= 0 {
		return 0
	}
	available := total - 2*p.Lead
	if available <= 0 {
		available = total
	}
	dwell := available / float64(pages)
	if p.MinDwell > 0 && dwell < p.MinDwell {
		dwell = p.MinDwell
	}
	if p.MaxDwell > 0 && dwell > p.MaxDwell {
		dwell = p.MaxDwell
	}
	return dwell
}

// Durations returns the dwell of every page in seconds.
func (p Planner) Durations(total float64, pages int) []float64 {
	dwell := p.Dwell(total, pages)
	out := make([]float64, pages)
	for i := range out {
		out[i] = dwell
	}
	if p.Jitter <= 0 || pages < 2 {
		return out
	}

	r := p.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	vary := func() float64 { return 1 + (r.Float64()*2-1)*p.Jitter }

	// Каждая страница отталкивается от длительности предыдущей
	out[0] = dwell * vary()
	sum := out[0]
	for i := 1; i < pages; i++ {
		out[i] = out[i-1] * vary()
		sum += out[i]
	}
	// Нормализуем, чтобы сумма осталась прежней
	scale := dwell * float64(pages) / sum
	for i := range out {
		out[i] *= scale
	}
	return out
}

// Plan returns back-to-back frame ranges for pages at fps. Rounding is done
// on boundaries so slots never overlap or leave gaps.
func (p Planner) Plan(total float64, pages int, fps float64) []Slot {
	durations := p.Durations(total, pages)
	slots := make([]Slot, 0, pages)
	at := p.Lead
	for _, d := range durations {
		start := int(math.Round(at * fps))
		at += d
		end := int(math.Round(at * fps))
		slots = append(slots, Slot{Start: start, Duration: max(end-start, 1)})
	}
	return slots
}
