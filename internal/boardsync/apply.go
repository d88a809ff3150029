package boardsync

import (
	"maps"
	"slices"

	"github.com/gosuda/orim/internal/domain"
)

type ChangeOp string

const (
	ChangeUpsert ChangeOp = "upsert"
	ChangeDelete ChangeOp = "delete"
)

// Change is one backend write produced by applying an action locally.
type Change struct {
	Op       ChangeOp            `json:"op"`
	ObjectID string              `json:"object_id"`
	Object   *domain.BoardObject `json:"object,omitempty"`
}

// Invert returns the action that undoes a. Batches are inverted entry by
// entry in reverse order.
func Invert(a Action) Action {
	switch a.Kind {
	case ActionCreate:
		return Action{Kind: ActionDelete, ObjectID: a.ObjectID, Snapshot: a.Snapshot}
	case ActionDelete:
		return Action{Kind: ActionCreate, ObjectID: a.ObjectID, Snapshot: a.Snapshot}
	case ActionUpdate:
		return Action{Kind: ActionUpdate, ObjectID: a.ObjectID, Before: a.After, After: a.Before}
	case ActionBatch:
		entries := make([]Action, len(a.Entries))
		for i, e := range a.Entries {
			entries[len(a.Entries)-1-i] = Invert(e)
		}
		return Action{Kind: ActionBatch, Entries: entries}
	default:
		return a
	}
}

// Apply performs a against replica, stamping every written object with
// stamp, and returns the writes the backend needs to mirror. Updates to
// objects the replica no longer holds are skipped.
func Apply(r *Replica, a Action, stamp string) []Change {
	switch a.Kind {
	case ActionCreate:
		if a.Snapshot == nil {
			return nil
		}
		o := a.Snapshot.Clone()
		o.UpdatedAt = stamp
		r.Put(o)
		return []Change{{Op: ChangeUpsert, ObjectID: o.ID, Object: &o}}
	case ActionDelete:
		id := a.ObjectID
		if id == "" && a.Snapshot != nil {
			id = a.Snapshot.ID
		}
		r.ApplyDelete(id)
		return []Change{{Op: ChangeDelete, ObjectID: id}}
	case ActionUpdate:
		o, ok := r.Get(a.ObjectID)
		if !ok {
			return nil
		}
		Patch(&o, a.After)
		o.UpdatedAt = stamp
		r.Put(o)
		return []Change{{Op: ChangeUpsert, ObjectID: o.ID, Object: &o}}
	case ActionBatch:
		var changes []Change
		for _, e := range a.Entries {
			changes = append(changes, Apply(r, e, stamp)...)
		}
		return changes
	default:
		return nil
	}
}

// Patch writes the fields of p onto o. Geometry keys set the matching
// fields, "data" replaces the whole data map and any other key is stored
// inside data.
func Patch(o *domain.BoardObject, p map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(p)) {
		v := p[k]
		switch k {
		case "x":
			setFloat(&o.X, v)
		case "y":
			setFloat(&o.Y, v)
		case "width":
			setFloat(&o.Width, v)
		case "height":
			setFloat(&o.Height, v)
		case "z_index":
			var z float64
			if setFloat(&z, v) {
				o.ZIndex = int(z)
			}
		case "type":
			if s, ok := v.(string); ok {
				o.Type = domain.ObjectType(s)
			}
		case "data":
			if m, ok := v.(map[string]any); ok {
				o.Data = maps.Clone(m)
			}
		default:
			if v == nil {
				delete(o.Data, k)
				continue
			}
			if o.Data == nil {
				o.Data = make(map[string]any)
			}
			o.Data[k] = v
		}
	}
}

// Fields extracts the current values of the keys in p from o, producing the
// "before" half of an update action.
func Fields(o domain.BoardObject, p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k := range p {
		switch k {
		case "x":
			out[k] = o.X
		case "y":
			out[k] = o.Y
		case "width":
			out[k] = o.Width
		case "height":
			out[k] = o.Height
		case "z_index":
			out[k] = o.ZIndex
		case "type":
			out[k] = string(o.Type)
		case "data":
			out[k] = maps.Clone(o.Data)
		default:
			out[k] = o.Data[k]
		}
	}
	return out
}

func setFloat(dst *float64, v any) bool {
	switch n := v.(type) {
	case float64:
		*dst = n
	case float32:
		*dst = float64(n)
	case int:
		*dst = float64(n)
	case int64:
		*dst = float64(n)
	default:
		return false
	}
	return true
}
