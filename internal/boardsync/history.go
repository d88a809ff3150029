package boardsync

import "github.com/gosuda/orim/internal/domain"

// DefaultHistoryLimit is the number of undoable actions kept per session.
const DefaultHistoryLimit = 50

type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionDelete ActionKind = "delete"
	ActionUpdate ActionKind = "update"
	ActionBatch  ActionKind = "batch"
)

// Action records one undoable user edit.
//
// Create and delete carry a full Snapshot of the object. Update carries the
// changed fields only, before and after the edit, keyed by wire name ("x",
// "width", "data", ...). Batch groups several actions that undo as a unit.
type Action struct {
	Kind     ActionKind          `json:"kind"`
	ObjectID string              `json:"object_id,omitempty"`
	Snapshot *domain.BoardObject `json:"snapshot,omitempty"`
	Before   map[string]any      `json:"before,omitempty"`
	After    map[string]any      `json:"after,omitempty"`
	Entries  []Action            `json:"entries,omitempty"`
}

func CreateAction(o domain.BoardObject) Action {
	snap := o.Clone()
	return Action{Kind: ActionCreate, ObjectID: o.ID, Snapshot: &snap}
}

func DeleteAction(o domain.BoardObject) Action {
	snap := o.Clone()
	return Action{Kind: ActionDelete, ObjectID: o.ID, Snapshot: &snap}
}

func UpdateAction(id string, before, after map[string]any) Action {
	return Action{Kind: ActionUpdate, ObjectID: id, Before: before, After: after}
}

func BatchAction(entries ...Action) Action {
	return Action{Kind: ActionBatch, Entries: entries}
}

// History is a bounded undo/redo stack. It only stores actions; applying
// them to board state is the caller's job (see Apply and Invert).
// A History is not safe for concurrent use.
type History struct {
	limit int
	undo  []Action
	redo  []Action
}

// NewHistory creates a History keeping at most limit undoable actions.
// Non-positive limits use DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Push records a new action. The oldest action is dropped once the limit is
// exceeded, and any redoable actions are discarded.
func (h *History) Push(a Action) {
	h.undo = append(h.undo, a)
	if len(h.undo) > h.limit {
		// Copy down so the evicted entries can be collected.
		n := copy(h.undo, h.undo[len(h.undo)-h.limit:])
		clear(h.undo[n:])
		h.undo = h.undo[:n]
	}
	clear(h.redo)
	h.redo = h.redo[:0]
}

// Undo pops the most recent action and moves it to the redo stack.
func (h *History) Undo() (Action, bool) {
	if len(h.undo) == 0 {
		return Action{}, false
	}
	last := len(h.undo) - 1
	a := h.undo[last]
	h.undo[last] = Action{}
	h.undo = h.undo[:last]
	h.redo = append(h.redo, a)
	return a, true
}

// Redo pops the most recently undone action and moves it back to the undo
// stack.
func (h *History) Redo() (Action, bool) {
	if len(h.redo) == 0 {
		return Action{}, false
	}
	last := len(h.redo) - 1
	a := h.redo[last]
	h.redo[last] = Action{}
	h.redo = h.redo[:last]
	h.undo = append(h.undo, a)
	return a, true
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }

func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Len returns the number of undoable actions.
func (h *History) Len() int { return len(h.undo) }

func (h *History) Limit() int { return h.limit }
