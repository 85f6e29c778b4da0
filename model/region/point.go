package region

import "fmt"

// MaxDim bounds the dimensionality of points and rectangles.
const MaxDim = 3

// Point is an integer coordinate in up to MaxDim dimensions. Only the
// first Dim entries of Coord are meaningful.
type Point struct {
	Dim   int
	Coord [MaxDim]int64
}

// Pt builds a point from explicit coordinates.
func Pt(coord ...int64) Point {
	p := Point{Dim: len(coord)}
	copy(p.Coord[:], coord)
	return p
}

// Rect is an inclusive axis-aligned bounding box. A rect with any
// Hi < Lo coordinate is empty.
type Rect struct {
	Lo Point
	Hi Point
}

// Rc builds a rect from lo/hi points; both must share dimensionality.
func Rc(lo, hi Point) Rect {
	return Rect{Lo: lo, Hi: hi}
}

// Dim returns the rect dimensionality.
func (r Rect) Dim() int { return r.Lo.Dim }

// Empty reports whether the rect contains no points.
func (r Rect) Empty() bool {
	for d := 0; d < r.Lo.Dim; d++ {
		if r.Hi.Coord[d] < r.Lo.Coord[d] {
			return true
		}
	}
	return r.Lo.Dim == 0
}

// Volume returns the number of points in the rect.
func (r Rect) Volume() uint64 {
	if r.Empty() {
		return 0
	}
	volume := uint64(1)
	for d := 0; d < r.Lo.Dim; d++ {
		volume *= uint64(r.Hi.Coord[d] - r.Lo.Coord[d] + 1)
	}
	return volume
}

// Contains reports whether p lies inside the rect.
func (r Rect) Contains(p Point) bool {
	if p.Dim != r.Lo.Dim {
		return false
	}
	for d := 0; d < p.Dim; d++ {
		if p.Coord[d] < r.Lo.Coord[d] || p.Coord[d] > r.Hi.Coord[d] {
			return false
		}
	}
	return true
}

// Intersect returns the overlap of two rects; the result may be empty.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{Lo: Point{Dim: r.Lo.Dim}, Hi: Point{Dim: r.Lo.Dim}}
	for d := 0; d < r.Lo.Dim; d++ {
		out.Lo.Coord[d] = max64(r.Lo.Coord[d], o.Lo.Coord[d])
		out.Hi.Coord[d] = min64(r.Hi.Coord[d], o.Hi.Coord[d])
	}
	return out
}

// Overlaps reports whether two rects share at least one point.
func (r Rect) Overlaps(o Rect) bool {
	if r.Dim() != o.Dim() {
		return false
	}
	return !r.Intersect(o).Empty()
}

func (r Rect) String() string {
	return fmt.Sprintf("[%v..%v]", r.Lo.Coord[:r.Lo.Dim], r.Hi.Coord[:r.Hi.Dim])
}

// Domain is a set of points expressed as a union of rects, all of the
// same dimensionality. The zero value is the empty domain.
type Domain struct {
	Dim   int
	Rects []Rect
}

// NewDomain builds a domain from rects; all rects must share the given
// dimensionality.
func NewDomain(dim int, rects ...Rect) Domain {
	out := Domain{Dim: dim}
	for _, r := range rects {
		if !r.Empty() {
			out.Rects = append(out.Rects, r)
		}
	}
	return out
}

// DomainFromPoints builds a degenerate domain with one unit rect per
// point. Dimensionality is derived from the first point.
func DomainFromPoints(points []Point) Domain {
	if len(points) == 0 {
		return Domain{}
	}
	out := Domain{Dim: points[0].Dim}
	for _, p := range points {
		out.Rects = append(out.Rects, Rect{Lo: p, Hi: p})
	}
	return out
}

// Empty reports whether the domain contains no points.
func (d Domain) Empty() bool {
	for _, r := range d.Rects {
		if !r.Empty() {
			return false
		}
	}
	return true
}

// Volume returns the number of points covered. Rects are assumed
// disjoint, matching how index-space domains are constructed.
func (d Domain) Volume() uint64 {
	var volume uint64
	for _, r := range d.Rects {
		volume += r.Volume()
	}
	return volume
}

// Contains reports whether p lies in the domain.
func (d Domain) Contains(p Point) bool {
	for _, r := range d.Rects {
		if r.Contains(p) {
			return true
		}
	}
	return false
}

// Overlaps reports whether two domains share at least one point.
func (d Domain) Overlaps(o Domain) bool {
	for _, r := range d.Rects {
		for _, s := range o.Rects {
			if r.Overlaps(s) {
				return true
			}
		}
	}
	return false
}

// Covers reports whether every point of o is contained in d. It walks
// o's rects point-wise, which is acceptable for the modest domains this
// layer manipulates.
func (d Domain) Covers(o Domain) bool {
	for _, r := range o.Rects {
		if r.Empty() {
			continue
		}
		if !d.coversRect(r) {
			return false
		}
	}
	return true
}

func (d Domain) coversRect(r Rect) bool {
	var walk func(p Point, dim int) bool
	walk = func(p Point, dim int) bool {
		if dim == r.Dim() {
			return d.Contains(p)
		}
		for c := r.Lo.Coord[dim]; c <= r.Hi.Coord[dim]; c++ {
			p.Coord[dim] = c
			if !walk(p, dim+1) {
				return false
			}
		}
		return true
	}
	return walk(Point{Dim: r.Dim()}, 0)
}

// Union returns a domain covering both operands. Incoming rects are
// split against the rects already present so the result stays a
// disjoint union, preserving Volume's invariant.
func (d Domain) Union(o Domain) Domain {
	out := Domain{Dim: d.Dim}
	if out.Dim == 0 {
		out.Dim = o.Dim
	}
	out.Rects = append(out.Rects, d.Rects...)
	for _, r := range o.Rects {
		fragments := []Rect{r}
		for _, s := range out.Rects {
			var next []Rect
			for _, f := range fragments {
				next = append(next, subtractRect(f, s)...)
			}
			fragments = next
		}
		out.Rects = append(out.Rects, fragments...)
	}
	return out
}

// subtractRect decomposes r minus s into disjoint rects.
func subtractRect(r, s Rect) []Rect {
	x := r.Intersect(s)
	if x.Empty() {
		return []Rect{r}
	}
	var out []Rect
	rem := r
	for d := 0; d < r.Dim(); d++ {
		if rem.Lo.Coord[d] < x.Lo.Coord[d] {
			below := rem
			below.Hi.Coord[d] = x.Lo.Coord[d] - 1
			out = append(out, below)
			rem.Lo.Coord[d] = x.Lo.Coord[d]
		}
		if rem.Hi.Coord[d] > x.Hi.Coord[d] {
			above := rem
			above.Lo.Coord[d] = x.Hi.Coord[d] + 1
			out = append(out, above)
			rem.Hi.Coord[d] = x.Hi.Coord[d]
		}
	}
	return out
}

// Intersect returns the common points of both operands.
func (d Domain) Intersect(o Domain) Domain {
	out := Domain{Dim: d.Dim}
	for _, r := range d.Rects {
		for _, s := range o.Rects {
			if x := r.Intersect(s); !x.Empty() {
				out.Rects = append(out.Rects, x)
			}
		}
	}
	return out
}

// Subtract returns the points of d not present in o, expressed
// point-wise. Used only for modest control domains.
func (d Domain) Subtract(o Domain) Domain {
	out := Domain{Dim: d.Dim}
	for _, r := range d.Rects {
		var walk func(p Point, dim int)
		walk = func(p Point, dim int) {
			if dim == r.Dim() {
				if !o.Contains(p) {
					out.Rects = append(out.Rects, Rect{Lo: p, Hi: p})
				}
				return
			}
			for c := r.Lo.Coord[dim]; c <= r.Hi.Coord[dim]; c++ {
				p.Coord[dim] = c
				walk(p, dim+1)
			}
		}
		walk(Point{Dim: r.Dim()}, 0)
	}
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
