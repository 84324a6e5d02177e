// Package archetypes provides the track kinds shipped with the sequencer
// and the parameter override extension.
package archetypes

import (
	"github.com/ivlev/sequencer/internal/timeline"
)

// Persisted type ids. They must never change once released.
const (
	EventTypeID      uint8 = 1
	FolderTypeID     uint8 = 2
	StoryboardTypeID uint8 = 3
)

// Registry returns a registry holding every built-in archetype.
func Registry() *timeline.Registry {
	return timeline.MustRegistry(Event{}, Folder{}, Storyboard{})
}
