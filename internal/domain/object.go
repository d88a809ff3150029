package domain

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

type ObjectType string

const (
	ObjectStickyNote ObjectType = "sticky_note"
	ObjectRectangle  ObjectType = "rectangle"
	ObjectCircle     ObjectType = "circle"
	ObjectLine       ObjectType = "line"
	ObjectText       ObjectType = "text"
	ObjectFrame      ObjectType = "frame"
	ObjectConnector  ObjectType = "connector"
)

// Valid reports whether t belongs to the closed set of object types.
func (t ObjectType) Valid() bool {
	switch t {
	case ObjectStickyNote, ObjectRectangle, ObjectCircle, ObjectLine,
		ObjectText, ObjectFrame, ObjectConnector:
		return true
	default:
		return false
	}
}

// BoardObject is a single shape on a board. UpdatedAt is kept as the
// ISO-8601 string observed on the wire so that malformed values survive
// decoding and can be ranked by the reconciler instead of failing the batch.
type BoardObject struct {
	ID        string         `json:"id"`
	BoardID   uuid.UUID      `json:"board_id"`
	Type      ObjectType     `json:"type"`
	Data      map[string]any `json:"data"`
	X         float64        `json:"x"`
	Y         float64        `json:"y"`
	Width     float64        `json:"width"`
	Height    float64        `json:"height"`
	ZIndex    int            `json:"z_index"`
	CreatedBy *uuid.UUID     `json:"created_by,omitempty"`
	UpdatedAt string         `json:"updated_at"`
}

// Clone returns a copy whose Data map can be mutated independently.
func (o BoardObject) Clone() BoardObject {
	if o.Data != nil {
		data := make(map[string]any, len(o.Data))
		for k, v := range o.Data {
			data[k] = v
		}
		o.Data = data
	}
	if o.CreatedBy != nil {
		by := *o.CreatedBy
		o.CreatedBy = &by
	}
	return o
}

// Timestamp formats t the way object timestamps travel on the wire.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// SortByZ orders objects for painting: ascending z-index, ties broken by ID.
func SortByZ(objects []BoardObject) {
	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].ZIndex != objects[j].ZIndex {
			return objects[i].ZIndex < objects[j].ZIndex
		}
		return objects[i].ID < objects[j].ID
	})
}

// ShapeDefault holds the size and colour a new object gets when the client
// leaves them out.
type ShapeDefault struct {
	Width       float64
	Height      float64
	Fill        string
	Stroke      string
	StrokeWidth float64
}

var shapeDefaults = map[ObjectType]ShapeDefault{ //nolint:gochecknoglobals // lookup table
	ObjectStickyNote: {Width: 150, Height: 150, Fill: "#EAB308"},
	ObjectRectangle:  {Width: 120, Height: 80, Fill: "#0066FF", Stroke: "#0044CC", StrokeWidth: 1},
	ObjectCircle:     {Width: 100, Height: 100, Fill: "#F97316", Stroke: "#EA580C", StrokeWidth: 1},
	ObjectLine:       {Width: 150, Height: 0, Fill: "transparent", Stroke: "#1f2937", StrokeWidth: 2},
	ObjectText:       {Width: 200, Height: 40, Fill: "#1f2937"},
	ObjectFrame:      {Width: 400, Height: 300, Fill: "transparent", Stroke: "#9ca3af", StrokeWidth: 1},
	ObjectConnector:  {Width: 0, Height: 0, Fill: "transparent", Stroke: "#1f2937", StrokeWidth: 2},
}

// ShapeDefaults returns the defaults for t. Unknown types get a zero value.
func ShapeDefaults(t ObjectType) ShapeDefault {
	return shapeDefaults[t]
}

// ApplyDefaults fills size and fill colour from the type defaults when the
// object carries none. Lines and connectors legitimately have zero extent, so
// only a fully zero size is replaced.
func (o *BoardObject) ApplyDefaults() {
	d := ShapeDefaults(o.Type)
	if o.Width == 0 && o.Height == 0 {
		o.Width, o.Height = d.Width, d.Height
	}
	if o.Data == nil {
		o.Data = make(map[string]any)
	}
	if _, ok := o.Data["fill"]; !ok && d.Fill != "" {
		o.Data["fill"] = d.Fill
	}
}

type ObjectRepository interface {
	// Upsert writes o unless the stored copy is at least as new. applied is
	// false when the write lost the last-writer-wins comparison.
	Upsert(ctx context.Context, o *BoardObject) (applied bool, err error)
	Get(ctx context.Context, boardID uuid.UUID, id string) (*BoardObject, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]BoardObject, error)
	Delete(ctx context.Context, boardID uuid.UUID, id string) error
	// CountByBoard returns the number of stored objects per board. Boards
	// without objects are absent from the map.
	CountByBoard(ctx context.Context) (map[uuid.UUID]int, error)
	// Count returns the number of objects updated at or after since. A zero
	// since counts every object.
	Count(ctx context.Context, since time.Time) (int, error)
}
