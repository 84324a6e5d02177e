package timeline

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// rebuildChildren derives every child list from the parent links. Siblings
// are ordered by flat position.
func (tl *Timeline) rebuildChildren() {
	for _, t := range tl.tracks {
		t.children = t.children[:0]
	}
	for _, id := range tl.flat {
		t := tl.tracks[id]
		if t.parent == NoTrack {
			continue
		}
		if p, ok := tl.tracks[t.parent]; ok {
			p.children = append(p.children, id)
		} else {
			t.parent = NoTrack
		}
	}
}

// isAncestor reports whether anc is id or one of its ancestors.
func (tl *Timeline) isAncestor(anc, id TrackID) bool {
	for steps := 0; id != NoTrack && steps <= len(tl.flat); steps++ {
		if id == anc {
			return true
		}
		t, ok := tl.tracks[id]
		if !ok {
			return false
		}
		id = t.parent
	}
	return false
}

// ContainsTrack reports whether candidate is t or lies in t's subtree.
func (tl *Timeline) ContainsTrack(t, candidate *Track) bool {
	if t == nil || candidate == nil || !tl.owns(t) || !tl.owns(candidate) {
		return false
	}
	return tl.isAncestor(t.id, candidate.id)
}

// Depth is the number of ancestors of t.
func (tl *Timeline) Depth(t *Track) int {
	if !tl.owns(t) {
		return -1
	}
	d := 0
	for p := t.parent; p != NoTrack && d <= len(tl.flat); d++ {
		p = tl.tracks[p].parent
	}
	return d
}

// subtreeEnd returns the flat position right after the last descendant of
// parent, or the end of the list for NoTrack.
func (tl *Timeline) subtreeEnd(parent TrackID) int {
	if parent == NoTrack {
		return len(tl.flat)
	}
	end := slices.Index(tl.flat, parent) + 1
	for i := end; i < len(tl.flat); i++ {
		if tl.isAncestor(parent, tl.flat[i]) {
			end = i + 1
		}
	}
	return end
}

// CollectSubtree returns the given tracks and all their descendants in
// pre-order. Every track appears once even when the inputs overlap.
func (tl *Timeline) CollectSubtree(tracks ...*Track) []*Track {
	seen := make(map[TrackID]bool)
	var out []*Track
	var visit func(t *Track)
	visit = func(t *Track) {
		if seen[t.id] {
			return
		}
		seen[t.id] = true
		out = append(out, t)
		for _, c := range t.children {
			visit(tl.tracks[c])
		}
	}
	for _, t := range tracks {
		if tl.owns(t) {
			visit(t)
		}
	}
	return out
}

// Walk visits every track in tree pre-order from the roots. Returning false
// from fn stops the walk.
func (tl *Timeline) Walk(fn func(t *Track, depth int) bool) {
	var visit func(id TrackID, depth int) bool
	visit = func(id TrackID, depth int) bool {
		t := tl.tracks[id]
		if !fn(t, depth) {
			return false
		}
		for _, c := range slices.Clone(t.children) {
			if !visit(c, depth+1) {
				return false
			}
		}
		return true
	}
	for _, id := range slices.Clone(tl.flat) {
		if t := tl.tracks[id]; t != nil && t.parent == NoTrack {
			if !visit(id, 0) {
				return
			}
		}
	}
}

func (tl *Timeline) preorder() []TrackID {
	out := make([]TrackID, 0, len(tl.flat))
	tl.Walk(func(t *Track, _ int) bool {
		out = append(out, t.id)
		return true
	})
	return out
}

// SetParent reparents t under newParent, or makes it a root track when
// newParent is nil. t becomes the last child and its subtree moves with it
// in the flat list. Cyclic moves are ignored.
func (tl *Timeline) SetParent(t, newParent *Track) error {
	if err := tl.checkTrack(t); err != nil {
		return err
	}
	if newParent != nil && !tl.owns(newParent) {
		return fmt.Errorf("parent: %w", ErrTrackNotFound)
	}
	if err := tl.guard("set parent"); err != nil {
		return err
	}
	target := NoTrack
	if newParent != nil {
		target = newParent.id
		if tl.isAncestor(t.id, target) {
			tl.log.Warn("reparent rejected: cycle",
				zap.String("track", t.name), zap.String("parent", newParent.name))
			return nil
		}
	}
	if target == t.parent {
		return nil
	}

	tl.begin()
	defer tl.end()

	before := slices.Clone(tl.flat)
	oldParent := t.parent

	block := tl.subtreeIDs(t.id)
	tl.flat = slices.DeleteFunc(tl.flat, func(id TrackID) bool { return slices.Contains(block, id) })
	t.parent = target
	tl.flat = slices.Insert(tl.flat, tl.subtreeEnd(target), block...)
	tl.rebuildChildren()

	tl.structureChanged(oldParent, target)
	tl.emit(&ReorderTrackCommand{
		tl: tl, Track: t.id,
		OldParent: oldParent, NewParent: target,
		Before: before, After: slices.Clone(tl.flat),
	})
	return nil
}

// subtreeIDs lists id and its descendants in flat order.
func (tl *Timeline) subtreeIDs(id TrackID) []TrackID {
	var out []TrackID
	for _, f := range tl.flat {
		if tl.isAncestor(id, f) {
			out = append(out, f)
		}
	}
	return out
}

// SetIndex moves t to flat position index. Negative indices clamp to zero
// and indices past the end append. The tree is not reflattened.
func (tl *Timeline) SetIndex(t *Track, index int) error {
	if err := tl.checkTrack(t); err != nil {
		return err
	}
	if err := tl.guard("set index"); err != nil {
		return err
	}
	cur := slices.Index(tl.flat, t.id)
	before := slices.Clone(tl.flat)
	rest := slices.Delete(slices.Clone(tl.flat), cur, cur+1)
	index = max(index, 0)
	if index > len(rest) {
		index = len(rest)
	}
	next := slices.Insert(rest, index, t.id)
	if slices.Equal(next, before) {
		return nil
	}

	tl.begin()
	defer tl.end()

	tl.flat = next
	tl.rebuildChildren()
	tl.structureChanged(t.parent, t.parent)
	tl.emit(&ReorderTrackCommand{
		tl: tl, Track: t.id,
		OldParent: t.parent, NewParent: t.parent,
		Before: before, After: slices.Clone(tl.flat),
	})
	return nil
}

// Reflatten rebuilds the flat list as the pre-order walk of the tree. It is
// the canonical iteration and persistence order.
func (tl *Timeline) Reflatten() error {
	if err := tl.guard("reflatten"); err != nil {
		return err
	}
	next := tl.preorder()
	return tl.reorder(next)
}

func (tl *Timeline) reorder(next []TrackID) error {
	if slices.Equal(next, tl.flat) {
		return nil
	}
	tl.begin()
	defer tl.end()

	before := tl.flat
	tl.flat = next
	tl.rebuildChildren()
	tl.structureChanged(NoTrack, NoTrack)
	tl.emit(&ReorderTrackCommand{
		tl: tl, Track: NoTrack,
		OldParent: NoTrack, NewParent: NoTrack,
		Before: slices.Clone(before), After: slices.Clone(next),
	})
	return nil
}

func (tl *Timeline) structureChanged(parents ...TrackID) {
	tl.markModified()
	tl.enqueue(Event{Kind: TracksReordered, Track: NoTrack})
	for _, p := range parents {
		if p != NoTrack {
			tl.enqueue(Event{Kind: SubTracksChanged, Track: p})
		}
	}
}

func compareTracks(a, b *Track) int {
	return strings.Compare(a.DisplayName(), b.DisplayName())
}

// SortTracks orders root tracks and every child list alphabetically by
// display name, keeping the tree shape.
func (tl *Timeline) SortTracks() error {
	if err := tl.guard("sort tracks"); err != nil {
		return err
	}
	var roots []*Track
	for _, id := range tl.flat {
		if t := tl.tracks[id]; t.parent == NoTrack {
			roots = append(roots, t)
		}
	}
	next := make([]TrackID, 0, len(tl.flat))
	var visit func(ts []*Track)
	visit = func(ts []*Track) {
		slices.SortStableFunc(ts, compareTracks)
		for _, t := range ts {
			next = append(next, t.id)
			visit(t.Children())
		}
	}
	visit(roots)
	return tl.reorder(next)
}

func (tl *Timeline) nameTaken(name string, except *Track) bool {
	for _, t := range tl.tracks {
		if t != except && t.name == name {
			return true
		}
	}
	return false
}

// uniqueName returns name, or name with the first free numeric suffix.
func (tl *Timeline) uniqueName(name string, except *Track) string {
	if !tl.nameTaken(name, except) {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s %d", name, i)
		if !tl.nameTaken(candidate, except) {
			return candidate
		}
	}
}

// Rename gives t the proposed name, suffixed when another track already
// uses it, and returns the name actually assigned.
func (tl *Timeline) Rename(t *Track, proposed string) (string, error) {
	if err := tl.checkTrack(t); err != nil {
		return "", err
	}
	if err := tl.guard("rename"); err != nil {
		return t.name, err
	}
	if proposed == "" {
		proposed = t.archetype.Name()
	}
	if proposed == t.name {
		return t.name, nil
	}
	name := tl.uniqueName(proposed, t)
	if name == t.name {
		return name, nil
	}

	tl.begin()
	defer tl.end()

	old := t.name
	t.name = name
	tl.markModified()
	tl.enqueue(Event{Kind: TrackRenamed, Track: t.id})
	tl.emit(&RenameTrackCommand{tl: tl, Track: t.id, Old: old, New: name})
	return name, nil
}
