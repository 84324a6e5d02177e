// Package history keeps the undo and redo stacks for timeline commands.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivlev/sequencer/internal/timeline"
)

var (
	ErrNothingToUndo = errors.New("history: nothing to undo")
	ErrNothingToRedo = errors.New("history: nothing to redo")
)

// DefaultLimit bounds the undo stack when no limit is configured.
const DefaultLimit = 200

// Entry is one recorded command.
type Entry struct {
	ID      uuid.UUID
	Command timeline.Command
	At      time.Time
}

func (e Entry) Name() string { return e.Command.Name() }

// History is a bounded undo/redo stack. It implements timeline.UndoSink.
type History struct {
	limit int
	undo  []Entry
	redo  []Entry
	log   *zap.Logger
	now   func() time.Time

	// OnChange is called after every push, undo, redo and clear.
	OnChange func(h *History)
}

// New returns a history keeping at most limit undo entries. A limit <= 0
// uses DefaultLimit.
func New(limit int, log *zap.Logger) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &History{limit: limit, log: log, now: time.Now}
}

// Push records cmd and drops the redo stack.
func (h *History) Push(cmd timeline.Command) {
	if cmd == nil {
		return
	}
	h.undo = append(h.undo, Entry{ID: uuid.New(), Command: cmd, At: h.now()})
	if over := len(h.undo) - h.limit; over > 0 {
		clear(h.undo[:over])
		h.undo = h.undo[over:]
	}
	clear(h.redo)
	h.redo = h.redo[:0]
	h.log.Debug("history push", zap.String("command", cmd.Name()), zap.Int("depth", len(h.undo)))
	h.changed()
}

// Undo reverts the latest command. A command that fails to revert is
// dropped so the stacks never point at inconsistent state.
func (h *History) Undo() (Entry, error) {
	if len(h.undo) == 0 {
		return Entry{}, ErrNothingToUndo
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	if err := e.Command.Revert(); err != nil {
		h.log.Error("undo failed", zap.String("command", e.Name()), zap.Error(err))
		h.changed()
		return e, fmt.Errorf("undo %s: %w", e.Name(), err)
	}
	h.redo = append(h.redo, e)
	h.log.Debug("undo", zap.String("command", e.Name()))
	h.changed()
	return e, nil
}

// Redo re-applies the latest undone command.
func (h *History) Redo() (Entry, error) {
	if len(h.redo) == 0 {
		return Entry{}, ErrNothingToRedo
	}
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	if err := e.Command.Apply(); err != nil {
		h.log.Error("redo failed", zap.String("command", e.Name()), zap.Error(err))
		h.changed()
		return e, fmt.Errorf("redo %s: %w", e.Name(), err)
	}
	h.undo = append(h.undo, e)
	h.log.Debug("redo", zap.String("command", e.Name()))
	h.changed()
	return e, nil
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }
func (h *History) UndoSize() int { return len(h.undo) }
func (h *History) RedoSize() int { return len(h.redo) }
func (h *History) Limit() int    { return h.limit }

// Entries returns the undo stack, oldest first.
func (h *History) Entries() []Entry {
	return append([]Entry(nil), h.undo...)
}

// Clear drops both stacks, e.g. after a timeline has been loaded.
func (h *History) Clear() {
	h.undo, h.redo = nil, nil
	h.changed()
}

func (h *History) changed() {
	if h.OnChange != nil {
		h.OnChange(h)
	}
}
