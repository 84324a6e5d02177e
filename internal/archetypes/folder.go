package archetypes

import (
	"github.com/ivlev/sequencer/internal/stream"
	"github.com/ivlev/sequencer/internal/timeline"
)

// Folder groups child tracks and holds no media.
type Folder struct{}

func (Folder) TypeID() uint8 { return FolderTypeID }
func (Folder) Name() string  { return "Folder" }

func (Folder) Create(t *timeline.Track, _ timeline.CreateOptions) error {
	t.MaxMediaCount = 0
	t.Icon = "folder"
	return nil
}

// Load reads the collapsed flag stored since version 3.
func (Folder) Load(version int32, t *timeline.Track, r *stream.Reader) error {
	if version >= 3 {
		t.Data = r.Bool()
	}
	return r.Err()
}

func (Folder) Save(t *timeline.Track, w *stream.Writer) error {
	collapsed, _ := t.Data.(bool)
	w.Bool(collapsed)
	return nil
}

// Collapsed reports the folder's UI collapsed flag.
func Collapsed(t *timeline.Track) bool {
	c, _ := t.Data.(bool)
	return c
}
