package tmatch

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strings"
)

// Extremes holds the global minimum and maximum of a surface.
type Extremes struct {
	MinValue    float32
	MinLocation image.Point
	MaxValue    float32
	MaxLocation image.Point
}

// Best returns the extremum that is the closest match under method.
func (x Extremes) Best(method Method) Match {
	if method.LowerIsBetter() {
		return Match{Location: x.MinLocation, Value: x.MinValue}
	}
	return Match{Location: x.MaxLocation, Value: x.MaxValue}
}

// FindExtremes scans surface once in row-major order. Ties keep the first
// location observed. NaN values are skipped; an empty or all-NaN surface
// returns the zero Extremes.
func FindExtremes(surface *Image) Extremes {
	var x Extremes
	found := false
	for i, v := range surface.Pix {
		if math.IsNaN(float64(v)) {
			continue
		}
		p := image.Pt(i%surface.Width, i/surface.Width)
		if !found {
			x = Extremes{MinValue: v, MinLocation: p, MaxValue: v, MaxLocation: p}
			found = true
			continue
		}
		if v < x.MinValue {
			x.MinValue, x.MinLocation = v, p
		}
		if v > x.MaxValue {
			x.MaxValue, x.MaxLocation = v, p
		}
	}
	return x
}

// MergeMode selects how overlapping candidates are suppressed.
type MergeMode uint8

const (
	// MergeGreedy merges each candidate into the most recently recorded
	// overlapping match. The result depends on scan order: a blob whose
	// peaks are recorded far apart in the list may yield several matches.
	MergeGreedy MergeMode = iota

	// MergeConnected groups all candidates whose template boxes overlap,
	// transitively, and keeps the best candidate of each group.
	MergeConnected
)

func (m MergeMode) String() string {
	switch m {
	case MergeGreedy:
		return "greedy"
	case MergeConnected:
		return "connected"
	}
	return "unknown"
}

// ParseMergeMode parses "greedy" or "connected". The empty string selects
// MergeGreedy.
func ParseMergeMode(s string) (MergeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "greedy":
		return MergeGreedy, nil
	case "connected":
		return MergeConnected, nil
	}
	return 0, fmt.Errorf("tmatch: unknown merge mode %q", s)
}

// overlaps reports whether two template boxes anchored at a and b intersect.
func overlaps(a, b image.Point, tw, th int) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx > -tw && dx < tw && dy > -th && dy < th
}

// FindMatches extracts every passing peak from surface with greedy
// non-maximum suppression.
//
// The surface is scanned row-major. A pixel whose value passes threshold is
// compared against the recorded matches from newest to oldest; the first one
// within a tw×th box absorbs it, taking over its location and value only if
// the pixel is strictly better. A pixel with no overlapping match is
// appended. The result is sorted best first, ties in scan order.
func FindMatches(surface *Image, tw, th int, method Method, threshold float32) []Match {
	var matches []Match
	for y := range surface.Height {
		row := surface.Pix[y*surface.Width : (y+1)*surface.Width]
		for x, v := range row {
			if !method.Passes(v, threshold) {
				continue
			}
			p := image.Pt(x, y)
			merged := false
			for i := len(matches) - 1; i >= 0; i-- {
				if !overlaps(matches[i].Location, p, tw, th) {
					continue
				}
				if method.IsBetter(v, matches[i].Value) {
					matches[i] = Match{Location: p, Value: v}
				}
				merged = true
				break
			}
			if !merged {
				matches = append(matches, Match{Location: p, Value: v})
			}
		}
	}
	sortMatches(matches, method)
	return matches
}

// FindMatchesMerged extracts one match per connected group of passing
// pixels, where two pixels are connected when their tw×th boxes overlap.
// Unlike FindMatches the result does not depend on scan order.
func FindMatchesMerged(surface *Image, tw, th int, method Method, threshold float32) []Match {
	var cands []Match
	for i, v := range surface.Pix {
		if method.Passes(v, threshold) {
			cands = append(cands, Match{Location: image.Pt(i%surface.Width, i/surface.Width), Value: v})
		}
	}
	if len(cands) == 0 {
		return nil
	}

	uf := newUnionFind(len(cands))
	// Candidates are in row-major order, so only those within th rows
	// of each other can overlap.
	for i := range cands {
		for j := i + 1; j < len(cands); j++ {
			if cands[j].Location.Y-cands[i].Location.Y >= th {
				break
			}
			if overlaps(cands[i].Location, cands[j].Location, tw, th) {
				uf.union(i, j)
			}
		}
	}

	best := make(map[int]int, len(cands))
	order := make([]int, 0)
	for i := range cands {
		root := uf.find(i)
		cur, ok := best[root]
		if !ok {
			best[root] = i
			order = append(order, root)
			continue
		}
		if method.IsBetter(cands[i].Value, cands[cur].Value) {
			best[root] = i
		}
	}

	matches := make([]Match, 0, len(order))
	for _, root := range order {
		matches = append(matches, cands[best[root]])
	}
	sortMatches(matches, method)
	return matches
}

func sortMatches(matches []Match, method Method) {
	sort.SliceStable(matches, func(i, j int) bool {
		return method.IsBetter(matches[i].Value, matches[j].Value)
	})
}

// unionFind is a disjoint-set forest with path halving and union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
		u.size[i] = 1
	}
	return u
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
}

// totalOrderKey maps a float32 to an int32 whose ordering is the IEEE 754
// totalOrder predicate: -NaN < -Inf < ... < -0 < +0 < ... < +Inf < +NaN.
func totalOrderKey(f float32) int32 {
	b := int32(math.Float32bits(f))
	return b ^ int32(uint32(b>>31)>>1)
}

// totalCompare returns -1, 0 or +1 comparing a and b under totalOrder.
func totalCompare(a, b float32) int {
	ka, kb := totalOrderKey(a), totalOrderKey(b)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}
