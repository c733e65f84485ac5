package systems

import (
	"fmt"
	"math"
)

// EmptySlot marks an empty cell head or the end of a bucket.
const EmptySlot int32 = -1

// Default grid dimensions.
const (
	DefaultGridCols   = 20
	DefaultGridRows   = 20
	DefaultAgentSlots = 2000
)

// GridConfig sizes a SpatialGrid. All fields must be positive.
type GridConfig struct {
	Cols       int
	Rows       int
	CellSize   float32
	AgentSlots int
}

// DefaultGridConfig returns the 20x20 grid with 2000 agent slots.
func DefaultGridConfig(cellSize float32) GridConfig {
	return GridConfig{
		Cols:       DefaultGridCols,
		Rows:       DefaultGridRows,
		CellSize:   cellSize,
		AgentSlots: DefaultAgentSlots,
	}
}

// SpatialGrid is a fixed uniform grid whose buckets are singly linked lists
// embedded in two index arrays: heads[cell] is the first agent in the cell,
// next[agent] the following agent in the same cell. Insert is O(1) and never
// allocates. The grid reflects positions only as of the last Clear + Insert pass.
type SpatialGrid struct {
	cellSize float32
	cols     int
	rows     int
	heads    []int32
	next     []int32
}

// NewSpatialGrid allocates a grid with cfg.Cols*cfg.Rows cells and cfg.AgentSlots
// agent slots. Both are hard limits.
func NewSpatialGrid(cfg GridConfig) (*SpatialGrid, error) {
	if cfg.Cols <= 0 || cfg.Rows <= 0 {
		return nil, fmt.Errorf("%w: %dx%d cells", ErrInvalidGrid, cfg.Cols, cfg.Rows)
	}
	if !(cfg.CellSize > 0) || math.IsInf(float64(cfg.CellSize), 0) {
		return nil, fmt.Errorf("%w: cell size %v", ErrInvalidGrid, cfg.CellSize)
	}
	if cfg.AgentSlots <= 0 || cfg.AgentSlots > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d agent slots", ErrInvalidGrid, cfg.AgentSlots)
	}

	g := &SpatialGrid{
		cellSize: cfg.CellSize,
		cols:     cfg.Cols,
		rows:     cfg.Rows,
		heads:    make([]int32, cfg.Cols*cfg.Rows),
		next:     make([]int32, cfg.AgentSlots),
	}
	g.Clear()
	for i := range g.next {
		g.next[i] = EmptySlot
	}
	return g, nil
}

// Clear resets every cell head. The next array is left as is: stale links are
// unreachable once their head is reset, and Insert rewrites them before reuse.
func (g *SpatialGrid) Clear() {
	for i := range g.heads {
		g.heads[i] = EmptySlot
	}
}

// Insert prepends agent to the bucket of the cell containing (x, y).
// Positions outside the grid extent land in the nearest border cell.
func (g *SpatialGrid) Insert(agent int, x, y float32) error {
	if agent < 0 || agent >= len(g.next) {
		return fmt.Errorf("grid insert agent %d (slots %d): %w", agent, len(g.next), ErrCapacityExceeded)
	}
	idx := g.CellOf(x, y)
	g.next[agent] = g.heads[idx]
	g.heads[idx] = int32(agent)
	return nil
}

// CellOf returns the clamped cell index containing (x, y).
func (g *SpatialGrid) CellOf(x, y float32) int {
	col := g.clampCol(g.axisCell(x))
	row := g.clampRow(g.axisCell(y))
	return row*g.cols + col
}

// NearbyCells appends to dst every cell overlapping the bounding box of the
// circle (x, y, radius), clamped to the grid. Broad phase only: callers still
// need a distance test, since corner cells may lie outside the circle.
// Reuse dst across calls to avoid allocation.
func (g *SpatialGrid) NearbyCells(dst []int, x, y, radius float32) []int {
	minCol := g.clampCol(g.axisCell(x - radius))
	maxCol := g.clampCol(g.axisCell(x + radius))
	minRow := g.clampRow(g.axisCell(y - radius))
	maxRow := g.clampRow(g.axisCell(y + radius))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			dst = append(dst, row*g.cols+col)
		}
	}
	return dst
}

// Head returns the first agent in cell, or EmptySlot.
func (g *SpatialGrid) Head(cell int) (int32, error) {
	if cell < 0 || cell >= len(g.heads) {
		return EmptySlot, fmt.Errorf("grid cell %d (cells %d): %w", cell, len(g.heads), ErrIndexOutOfRange)
	}
	return g.heads[cell], nil
}

// Next returns the agent after agent in its bucket, or EmptySlot.
func (g *SpatialGrid) Next(agent int32) (int32, error) {
	if agent < 0 || int(agent) >= len(g.next) {
		return EmptySlot, fmt.Errorf("grid slot %d (slots %d): %w", agent, len(g.next), ErrIndexOutOfRange)
	}
	return g.next[agent], nil
}

// Bucket appends the agents in cell to dst, most recently inserted first.
func (g *SpatialGrid) Bucket(dst []int32, cell int) ([]int32, error) {
	a, err := g.Head(cell)
	if err != nil {
		return dst, err
	}
	for a != EmptySlot {
		dst = append(dst, a)
		a = g.next[a]
	}
	return dst, nil
}

// CellCount returns the number of cells.
func (g *SpatialGrid) CellCount() int { return len(g.heads) }

// AgentSlots returns the agent slot capacity.
func (g *SpatialGrid) AgentSlots() int { return len(g.next) }

// CellSize returns the cell edge length in world units.
func (g *SpatialGrid) CellSize() float32 { return g.cellSize }

// Extent returns the world-space size covered by the grid.
func (g *SpatialGrid) Extent() (width, height float32) {
	return float32(g.cols) * g.cellSize, float32(g.rows) * g.cellSize
}

// axisCell floors a world coordinate to a cell coordinate. NaN maps to cell 0;
// values beyond the int range saturate so clamping still applies.
func (g *SpatialGrid) axisCell(v float32) int {
	f := math.Floor(float64(v) / float64(g.cellSize))
	switch {
	case f != f:
		return 0
	case f < math.MinInt32:
		return math.MinInt32
	case f > math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}

func (g *SpatialGrid) clampCol(c int) int {
	if c < 0 {
		return 0
	} else if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *SpatialGrid) clampRow(r int) int {
	if r < 0 {
		return 0
	} else if r >= g.rows {
		return g.rows - 1
	}
	return r
}
