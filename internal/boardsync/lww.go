// Package boardsync holds the client-side synchronisation kernel for board
// objects: last-writer-wins reconciliation, viewport culling and the undo/redo
// history. Everything here is pure, synchronous bookkeeping over small
// in-memory collections; none of it performs I/O.
package boardsync

import (
	"time"

	"github.com/gosuda/orim/internal/domain"
)

// timestampLayouts are tried in order. The second form is what Postgres emits
// for timestamptz when rows are relayed as text.
var timestampLayouts = []string{ //nolint:gochecknoglobals // parse table
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
}

// ParseTimestamp parses an object timestamp. ok is false for empty or
// malformed input.
func ParseTimestamp(s string) (t time.Time, ok bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Newer reports whether remote is strictly newer than local. A malformed
// remote timestamp is never newer; a malformed local timestamp is older than
// any well-formed remote one.
func Newer(remote, local string) bool {
	rt, ok := ParseTimestamp(remote)
	if !ok {
		return false
	}
	lt, ok := ParseTimestamp(local)
	if !ok {
		return true
	}
	return rt.After(lt)
}

// MergeOne applies a single remote state to local and reports whether it
// replaced (or inserted) the local entry. Equal timestamps keep the local
// value. Remote states without an ID are ignored.
func MergeOne(local map[string]domain.BoardObject, remote domain.BoardObject) bool {
	if remote.ID == "" {
		return false
	}
	existing, ok := local[remote.ID]
	if ok && !Newer(remote.UpdatedAt, existing.UpdatedAt) {
		return false
	}
	local[remote.ID] = remote.Clone()
	return true
}

// Merge applies batch to local in order and returns the IDs that changed.
// Applying the same batch again changes nothing.
func Merge(local map[string]domain.BoardObject, batch []domain.BoardObject) []string {
	var applied []string
	for _, remote := range batch {
		if MergeOne(local, remote) {
			applied = append(applied, remote.ID)
		}
	}
	return applied
}

// Diff returns the members of batch that would win against local, without
// mutating local. When batch holds several states for one ID only the newest
// winning state is returned.
func Diff(local map[string]domain.BoardObject, batch []domain.BoardObject) []domain.BoardObject {
	winners := make(map[string]int, len(batch))
	var out []domain.BoardObject
	for _, remote := range batch {
		if remote.ID == "" {
			continue
		}
		existing, ok := local[remote.ID]
		if ok && !Newer(remote.UpdatedAt, existing.UpdatedAt) {
			continue
		}
		if idx, seen := winners[remote.ID]; seen {
			if Newer(remote.UpdatedAt, out[idx].UpdatedAt) {
				out[idx] = remote
			}
			continue
		}
		winners[remote.ID] = len(out)
		out = append(out, remote)
	}
	return out
}

// Replica is a local authoritative collection of board objects keyed by ID.
// A Replica is not safe for concurrent use.
type Replica struct {
	objects map[string]domain.BoardObject
}

func NewReplica(objects ...domain.BoardObject) *Replica {
	r := &Replica{}
	r.Reset(objects)
	return r
}

// Reset replaces the whole collection, as after a full refetch.
func (r *Replica) Reset(objects []domain.BoardObject) {
	r.objects = make(map[string]domain.BoardObject, len(objects))
	for _, o := range objects {
		if o.ID == "" {
			continue
		}
		r.objects[o.ID] = o.Clone()
	}
}

// ApplyRemote merges a remote batch with last-writer-wins semantics.
func (r *Replica) ApplyRemote(batch ...domain.BoardObject) []string {
	return Merge(r.objects, batch)
}

// ApplyDelete removes id and reports whether it was present.
func (r *Replica) ApplyDelete(id string) bool {
	if _, ok := r.objects[id]; !ok {
		return false
	}
	delete(r.objects, id)
	return true
}

// Put stores o unconditionally. It is used for optimistic local writes, which
// always carry a fresh timestamp.
func (r *Replica) Put(o domain.BoardObject) {
	if o.ID == "" {
		return
	}
	r.objects[o.ID] = o.Clone()
}

func (r *Replica) Get(id string) (domain.BoardObject, bool) {
	o, ok := r.objects[id]
	if !ok {
		return domain.BoardObject{}, false
	}
	return o.Clone(), true
}

func (r *Replica) Len() int {
	return len(r.objects)
}

// Snapshot returns a copy of every object in paint order.
func (r *Replica) Snapshot() []domain.BoardObject {
	out := make([]domain.BoardObject, 0, len(r.objects))
	for _, o := range r.objects {
		out = append(out, o.Clone())
	}
	domain.SortByZ(out)
	return out
}

// Index exposes the underlying map for read-only use with Diff.
func (r *Replica) Index() map[string]domain.BoardObject {
	return r.objects
}
