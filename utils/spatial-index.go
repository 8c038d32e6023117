package utils

import (
	"math"
	"sort"

	"github.com/bsaid97/go-topology-engine/geo"
)

// SpatialIndex buckets envelopes into a uniform grid so that neighbour
// queries only look at entries sharing a cell.
type SpatialIndex struct {
	entries  []IndexedEnvelope
	cellSize float64
	grid     map[cellKey][]int
}

type IndexedEnvelope struct {
	Envelope geo.Envelope
	Index    int
}

type cellKey struct {
	x, y int
}

// maxCellsPerEntry bounds how many cells one envelope may occupy. Larger
// envelopes go to the overflow list, which every query scans.
const maxCellsPerEntry = 4096

func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		cellSize = 1
	}
	return &SpatialIndex{
		cellSize: cellSize,
		grid:     make(map[cellKey][]int),
	}
}

// NewSpatialIndexFor sizes the grid cells from the average extent of envs,
// so a typical entry covers about one cell.
func NewSpatialIndexFor(envs []geo.Envelope) *SpatialIndex {
	total := 0.0
	for _, e := range envs {
		total += math.Max(e.MaxX-e.MinX, e.MaxY-e.MinY)
	}
	size := 1.0
	if len(envs) > 0 && total > 0 {
		size = total / float64(len(envs))
	}
	return NewSpatialIndex(size)
}

func (si *SpatialIndex) Add(index int, env geo.Envelope) {
	slot := len(si.entries)
	si.entries = append(si.entries, IndexedEnvelope{Envelope: env, Index: index})

	minX, minY, maxX, maxY := si.cells(env)
	if (maxX-minX+1)*(maxY-minY+1) > maxCellsPerEntry {
		si.grid[overflow] = append(si.grid[overflow], slot)
		return
	}
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			key := cellKey{x, y}
			si.grid[key] = append(si.grid[key], slot)
		}
	}
}

var overflow = cellKey{math.MinInt, math.MinInt}

// Query returns the indices of every entry whose envelope intersects env,
// in ascending order.
func (si *SpatialIndex) Query(env geo.Envelope) []int {
	seen := make(map[int]bool)
	var found []int
	visit := func(slot int) {
		if seen[slot] {
			return
		}
		seen[slot] = true
		if e := si.entries[slot]; e.Envelope.Intersects(env) {
			found = append(found, e.Index)
		}
	}

	for _, slot := range si.grid[overflow] {
		visit(slot)
	}
	minX, minY, maxX, maxY := si.cells(env)
	if (maxX-minX+1)*(maxY-minY+1) > maxCellsPerEntry {
		for slot := range si.entries {
			visit(slot)
		}
	} else {
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				for _, slot := range si.grid[cellKey{x, y}] {
					visit(slot)
				}
			}
		}
	}

	sort.Ints(found)
	return found
}

func (si *SpatialIndex) Len() int {
	return len(si.entries)
}

func (si *SpatialIndex) cells(env geo.Envelope) (minX, minY, maxX, maxY int) {
	return int(math.Floor(env.MinX / si.cellSize)),
		int(math.Floor(env.MinY / si.cellSize)),
		int(math.Floor(env.MaxX / si.cellSize)),
		int(math.Floor(env.MaxY / si.cellSize))
}
