package boardsync

import (
	"math"

	"github.com/gosuda/orim/internal/domain"
)

// Viewport is the visible region of the canvas in board coordinates.
type Viewport struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Visible reports whether the bounding box of o overlaps vp. Intervals are
// open: an object that only touches an edge is not visible.
func Visible(o domain.BoardObject, vp Viewport) bool {
	return o.X+o.Width > vp.X &&
		o.X < vp.X+vp.Width &&
		o.Y+o.Height > vp.Y &&
		o.Y < vp.Y+vp.Height
}

// Cull returns the objects overlapping vp, preserving input order.
func Cull(objects []domain.BoardObject, vp Viewport) []domain.BoardObject {
	out := make([]domain.BoardObject, 0, len(objects))
	for _, o := range objects {
		if Visible(o, vp) {
			out = append(out, o)
		}
	}
	return out
}

type cellKey struct {
	cx, cy int64
}

// maxCellSpan bounds how many cells a single box may occupy. Larger (or
// non-finite) boxes are kept in an overflow set that every query scans.
const maxCellSpan = 1024

// Grid is a uniform spatial hash over object bounding boxes. Query results
// are identical to Cull over the same objects; the grid only narrows the
// candidate set. A Grid is not safe for concurrent use.
type Grid struct {
	cellSize float64
	cells    map[cellKey]map[string]struct{}
	overflow map[string]struct{}
	objects  map[string]domain.BoardObject
}

// NewGrid creates a grid with square cells of the given size. Non-positive
// sizes fall back to 256 board units.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		cellSize = 256
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[string]struct{}),
		overflow: make(map[string]struct{}),
		objects:  make(map[string]domain.BoardObject),
	}
}

// Insert adds or replaces o.
func (g *Grid) Insert(o domain.BoardObject) {
	if o.ID == "" {
		return
	}
	g.Remove(o.ID)
	g.objects[o.ID] = o
	r, ok := g.span(o.X, o.Y, o.Width, o.Height)
	if !ok {
		g.overflow[o.ID] = struct{}{}
		return
	}
	r.each(func(k cellKey) {
		bucket, exists := g.cells[k]
		if !exists {
			bucket = make(map[string]struct{})
			g.cells[k] = bucket
		}
		bucket[o.ID] = struct{}{}
	})
}

// Remove deletes id from the grid if present.
func (g *Grid) Remove(id string) {
	o, ok := g.objects[id]
	if !ok {
		return
	}
	delete(g.objects, id)
	if _, over := g.overflow[id]; over {
		delete(g.overflow, id)
		return
	}
	r, _ := g.span(o.X, o.Y, o.Width, o.Height)
	r.each(func(k cellKey) {
		bucket := g.cells[k]
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(g.cells, k)
		}
	})
}

func (g *Grid) Len() int {
	return len(g.objects)
}

// Query returns the objects overlapping vp in paint order.
func (g *Grid) Query(vp Viewport) []domain.BoardObject {
	var out []domain.BoardObject
	r, ok := g.span(vp.X, vp.Y, vp.Width, vp.Height)
	if !ok || r.count() > int64(len(g.cells)) {
		// Scanning everything is cheaper than walking mostly empty cells.
		for _, o := range g.objects {
			if Visible(o, vp) {
				out = append(out, o)
			}
		}
		domain.SortByZ(out)
		return out
	}

	seen := make(map[string]struct{})
	visit := func(id string) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		if o := g.objects[id]; Visible(o, vp) {
			out = append(out, o)
		}
	}
	r.each(func(k cellKey) {
		for id := range g.cells[k] {
			visit(id)
		}
	})
	for id := range g.overflow {
		visit(id)
	}
	domain.SortByZ(out)
	return out
}

type cellRange struct {
	x0, x1, y0, y1 int64
}

func (r cellRange) count() int64 {
	return (r.x1 - r.x0 + 1) * (r.y1 - r.y0 + 1)
}

func (r cellRange) each(fn func(cellKey)) {
	for cx := r.x0; cx <= r.x1; cx++ {
		for cy := r.y0; cy <= r.y1; cy++ {
			fn(cellKey{cx, cy})
		}
	}
}

// span returns the cells touched by the closed box. Covering the closed box
// is a superset of the open-interval test, so no visible object is missed.
// Negative extents are normalised first. ok is false for non-finite boxes and
// boxes wider or taller than maxCellSpan cells.
func (g *Grid) span(x, y, w, h float64) (cellRange, bool) {
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	for _, v := range [...]float64{x, y, x + w, y + h} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return cellRange{}, false
		}
	}
	fx0, fx1 := math.Floor(x/g.cellSize), math.Floor((x+w)/g.cellSize)
	fy0, fy1 := math.Floor(y/g.cellSize), math.Floor((y+h)/g.cellSize)
	if fx1-fx0 >= maxCellSpan || fy1-fy0 >= maxCellSpan ||
		math.Abs(fx0) > math.MaxInt32 || math.Abs(fy0) > math.MaxInt32 {
		return cellRange{}, false
	}
	return cellRange{x0: int64(fx0), x1: int64(fx1), y0: int64(fy0), y1: int64(fy1)}, true
}
