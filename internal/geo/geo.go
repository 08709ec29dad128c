// Package geo resolves coordinates to hierarchical spatial cells and computes
// neighbor rings. Cells are geohash strings at a fixed precision, so a cell id
// sorts and compares as a plain string and can be indexed by MongoDB directly.
package geo

import (
	"sort"

	"github.com/mmcloughlin/geohash"

	"github.com/uoknil/tauschBar/internal/apperr"
)

// DefaultPrecision is the geohash length used for listing cells.
// 6 characters is roughly a 1.2km x 0.6km cell.
const DefaultPrecision = 6

// Cell is a spatial cell id (geohash prefix).
type Cell = string

// Resolver maps coordinates to cells at a fixed precision.
type Resolver struct {
	precision uint
}

// NewResolver creates a Resolver. Precision values outside 1..12 fall back to
// DefaultPrecision.
func NewResolver(precision int) *Resolver {
	if precision < 1 || precision > 12 {
		precision = DefaultPrecision
	}
	return &Resolver{precision: uint(precision)}
}

// CellOf returns the cell containing the given WGS84 coordinates.
// Out-of-range input fails with a Validation error; callers fall back to
// zip matching in that case.
func (r *Resolver) CellOf(lat, lng float64) (Cell, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return "", apperr.Validation("invalid location: lat=%v lng=%v", lat, lng)
	}
	return geohash.EncodeWithPrecision(lat, lng, r.precision), nil
}

// Neighbors returns the cell itself plus every cell within the given ring
// distance, sorted. Radius 1 is the cell and its 8 surrounding cells.
func (r *Resolver) Neighbors(cell Cell, radius int) []Cell {
	seen := map[Cell]struct{}{cell: {}}
	frontier := []Cell{cell}

	for ring := 0; ring < radius; ring++ {
		var next []Cell
		for _, c := range frontier {
			for _, n := range geohash.Neighbors(c) {
				if _, ok := seen[n]; ok {
					continue
				}
				seen[n] = struct{}{}
				next = append(next, n)
			}
		}
		frontier = next
	}

	out := make([]Cell, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
