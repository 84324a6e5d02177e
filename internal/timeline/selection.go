package timeline

import "go.uber.org/zap"

// SelectTrack adds t to the selection. Without additive the previous
// selection is replaced.
func (tl *Timeline) SelectTrack(t *Track, additive bool) {
	if !tl.owns(t) {
		return
	}
	if !additive {
		clear(tl.selTracks)
	}
	tl.selTracks[t.id] = struct{}{}
	tl.enqueue(Event{Kind: SelectionChanged, Track: t.id})
}

func (tl *Timeline) DeselectTrack(t *Track) {
	if t == nil {
		return
	}
	if _, ok := tl.selTracks[t.id]; ok {
		delete(tl.selTracks, t.id)
		tl.enqueue(Event{Kind: SelectionChanged, Track: t.id})
	}
}

// ToggleTrack flips the selection state of t.
func (tl *Timeline) ToggleTrack(t *Track) {
	if tl.IsTrackSelected(t) {
		tl.DeselectTrack(t)
		return
	}
	tl.SelectTrack(t, true)
}

func (tl *Timeline) IsTrackSelected(t *Track) bool {
	if t == nil {
		return false
	}
	_, ok := tl.selTracks[t.id]
	return ok
}

// SelectedTracks returns the selected tracks in flat order.
func (tl *Timeline) SelectedTracks() []*Track {
	var out []*Track
	for _, id := range tl.flat {
		if _, ok := tl.selTracks[id]; ok {
			out = append(out, tl.tracks[id])
		}
	}
	return out
}

func (tl *Timeline) SelectMedia(m *Media, additive bool) {
	if m == nil || m.track == nil || !tl.owns(m.track) {
		return
	}
	if !additive {
		clear(tl.selMedia)
	}
	tl.selMedia[m] = struct{}{}
	tl.enqueue(Event{Kind: SelectionChanged, Track: m.track.id})
}

func (tl *Timeline) DeselectMedia(m *Media) {
	if _, ok := tl.selMedia[m]; ok {
		delete(tl.selMedia, m)
		tl.enqueue(Event{Kind: SelectionChanged, Track: NoTrack})
	}
}

func (tl *Timeline) IsMediaSelected(m *Media) bool {
	_, ok := tl.selMedia[m]
	return ok
}

// SelectedMedia returns the selected media ordered by track then start.
func (tl *Timeline) SelectedMedia() []*Media {
	var out []*Media
	for _, id := range tl.flat {
		for _, m := range tl.tracks[id].media {
			if _, ok := tl.selMedia[m]; ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// ClearSelection empties both selection sets.
func (tl *Timeline) ClearSelection() {
	if len(tl.selTracks) == 0 && len(tl.selMedia) == 0 {
		return
	}
	clear(tl.selTracks)
	clear(tl.selMedia)
	tl.enqueue(Event{Kind: SelectionChanged, Track: NoTrack})
}

func (tl *Timeline) forgetMedia(m *Media) {
	if _, ok := tl.selMedia[m]; ok {
		delete(tl.selMedia, m)
		tl.enqueue(Event{Kind: SelectionChanged, Track: NoTrack})
	}
}

// DeleteSelectedTracks removes the selected tracks with their subtrees as
// one undo step. An empty selection is a no-op.
func (tl *Timeline) DeleteSelectedTracks() error {
	sel := tl.SelectedTracks()
	if len(sel) == 0 {
		return nil
	}
	return tl.RemoveTracks(sel...)
}

// DeleteSelectedMedia removes every selected media that its track allows
// to be deleted. Media that cannot go are left selected.
func (tl *Timeline) DeleteSelectedMedia() error {
	sel := tl.SelectedMedia()
	if len(sel) == 0 {
		return nil
	}
	byTrack := make(map[*Track][]*Media)
	var order []*Track
	for _, m := range sel {
		if _, ok := byTrack[m.track]; !ok {
			order = append(order, m.track)
		}
		byTrack[m.track] = append(byTrack[m.track], m)
	}
	return tl.Batch("Delete Media", func() error {
		for _, t := range order {
			err := tl.EditTrack(t, "Delete Media", func() error {
				for _, m := range byTrack[t] {
					if err := t.RemoveMedia(m); err != nil {
						tl.log.Debug("media kept", zap.String("track", t.name), zap.Error(err))
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DuplicateSelectedTracks copies every selected subtree next to its source
// and selects the copies. All copies form a single undo step.
func (tl *Timeline) DuplicateSelectedTracks() ([]*Track, error) {
	sel := tl.SelectedTracks()
	if len(sel) == 0 {
		return nil, nil
	}
	if err := tl.guard("duplicate"); err != nil {
		return nil, err
	}

	// only duplicate the topmost selected tracks, their descendants come along
	var tops []*Track
	for _, t := range sel {
		nested := false
		for p := t.parent; p != NoTrack; p = tl.tracks[p].parent {
			if _, ok := tl.selTracks[p]; ok {
				nested = true
				break
			}
		}
		if !nested {
			tops = append(tops, t)
		}
	}

	var copies []*Track
	err := tl.Batch("Duplicate Tracks", func() error {
		for _, top := range tops {
			c, err := tl.duplicate(top)
			if err != nil {
				return err
			}
			copies = append(copies, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	tl.begin()
	clear(tl.selTracks)
	for _, c := range copies {
		tl.selTracks[c.id] = struct{}{}
	}
	tl.enqueue(Event{Kind: SelectionChanged, Track: NoTrack})
	tl.end()
	return copies, nil
}

func (tl *Timeline) duplicate(top *Track) (*Track, error) {
	src := tl.subtreeIDs(top.id)
	srcTracks := make([]*Track, len(src))
	for i, id := range src {
		srcTracks[i] = tl.tracks[id]
	}
	records, err := tl.snapshotRecords(srcTracks)
	if err != nil {
		return nil, err
	}

	at := tl.subtreeEnd(top.id)
	idmap := make(map[TrackID]TrackID, len(records))
	created := make([]*Track, 0, len(records))
	for i, rec := range records {
		newID := tl.allocID()
		idmap[rec.ID] = newID
		rec.ID = newID
		if p, ok := idmap[rec.Parent]; ok {
			rec.Parent = p
		}
		rec.Name = tl.uniqueName(rec.Name, nil)
		rec.Index = at + i
		t, err := tl.restoreRecord(rec)
		if err != nil {
			return nil, err
		}
		created = append(created, t)
	}
	tl.rebuildChildren()
	tl.markModified()
	for _, t := range created {
		tl.enqueue(Event{Kind: TrackAdded, Track: t.id})
	}
	if top.parent != NoTrack {
		tl.enqueue(Event{Kind: SubTracksChanged, Track: top.parent})
	}

	after, err := tl.snapshotRecords(created)
	if err != nil {
		return nil, err
	}
	tl.emit(&AddTrackCommand{tl: tl, records: after})
	tl.log.Debug("track duplicated", zap.String("source", top.name), zap.String("copy", created[0].name))
	return created[0], nil
}
