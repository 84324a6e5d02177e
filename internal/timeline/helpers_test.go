package timeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ivlev/sequencer/internal/stream"
)

// clipArch keeps media and a note string per track.
type clipArch struct {
	id   uint8
	name string

	onSave   func(t *Track)
	frames   []int
	loadedOK []TrackID
}

func (a *clipArch) TypeID() uint8 { return a.id }
func (a *clipArch) Name() string  { return a.name }

func (a *clipArch) Create(t *Track, opts CreateOptions) error {
	t.Data = ""
	if opts.Duration > 0 {
		return t.AddMedia(NewMedia(opts.Start, opts.Duration))
	}
	return nil
}

func (a *clipArch) Load(version int32, t *Track, r *stream.Reader) error {
	if err := LoadMedia(t, r); err != nil {
		return err
	}
	t.Data = r.String()
	return r.Err()
}

func (a *clipArch) Save(t *Track, w *stream.Writer) error {
	if a.onSave != nil {
		a.onSave(t)
	}
	WriteMediaList(w, t.media)
	note, _ := t.Data.(string)
	w.String(note)
	return nil
}

func (a *clipArch) OnLoaded(t *Track) { a.loadedOK = append(a.loadedOK, t.ID()) }

func (a *clipArch) OnTimelineCurrentFrameChanged(t *Track, frame int) {
	a.frames = append(a.frames, frame)
}

// folderArch has no payload and holds no media.
type folderArch struct{}

func (folderArch) TypeID() uint8 { return 2 }
func (folderArch) Name() string  { return "Folder" }

func (folderArch) Create(t *Track, _ CreateOptions) error {
	t.MaxMediaCount = 0
	return nil
}

func (folderArch) Load(int32, *Track, *stream.Reader) error { return nil }
func (folderArch) Save(*Track, *stream.Writer) error        { return nil }

type recorder struct {
	cmds []Command
}

func (r *recorder) Push(cmd Command) { r.cmds = append(r.cmds, cmd) }

func (r *recorder) last(t *testing.T) Command {
	t.Helper()
	require.NotEmpty(t, r.cmds)
	return r.cmds[len(r.cmds)-1]
}

func newTestTimeline(t *testing.T, opts ...Option) (*Timeline, *clipArch) {
	t.Helper()
	clip := &clipArch{id: 1, name: "Clip"}
	reg, err := NewRegistry(clip, folderArch{})
	require.NoError(t, err)
	return New(reg, opts...), clip
}

func addClip(t *testing.T, tl *Timeline, name string, parent *Track, start, duration int) *Track {
	t.Helper()
	arch, ok := tl.Registry().Lookup(1)
	require.True(t, ok)
	tr, err := tl.AddTrack(arch, CreateOptions{Name: name, Parent: parent, Start: start, Duration: duration})
	require.NoError(t, err)
	return tr
}

func addFolder(t *testing.T, tl *Timeline, name string, parent *Track) *Track {
	t.Helper()
	tr, err := tl.AddTrackOfType(2, CreateOptions{Name: name, Parent: parent})
	require.NoError(t, err)
	return tr
}

func names(tracks []*Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Name()
	}
	return out
}

func assertUniqueNames(t *testing.T, tl *Timeline) {
	t.Helper()
	seen := map[string]bool{}
	for _, tr := range tl.Tracks() {
		require.False(t, seen[tr.Name()], "duplicate name %q", tr.Name())
		seen[tr.Name()] = true
	}
}

func assertNoCycles(t *testing.T, tl *Timeline) {
	t.Helper()
	for _, tr := range tl.Tracks() {
		steps := 0
		for p := tr.Parent(); p != nil; p = p.Parent() {
			require.NotSame(t, tr, p, "track %q is its own ancestor", tr.Name())
			steps++
			require.LessOrEqual(t, steps, tl.Len())
		}
	}
}
