package domain

import (
	"fmt"
	"math"
	"slices"
)

// Frame is an indicator frame: a private copy of an observation sequence plus
// named indicator columns aligned to bar index.
type Frame struct {
	bars    []Bar
	closes  []float64
	columns map[string][]float64
	names   []string
}

// NewFrame copies bars into a new Frame with no columns.
func NewFrame(bars []Bar) *Frame {
	owned := slices.Clone(bars)
	return &Frame{
		bars:    owned,
		closes:  Closes(owned),
		columns: make(map[string][]float64),
	}
}

// Len returns the number of bars in the frame.
func (f *Frame) Len() int { return len(f.bars) }

// Bar returns the bar at index i.
func (f *Frame) Bar(i int) Bar { return f.bars[i] }

// Closes returns a copy of the close prices.
func (f *Frame) Closes() []float64 { return slices.Clone(f.closes) }

// AddColumn attaches values under name. The slice must match the frame length
// and the name must not already be in use.
func (f *Frame) AddColumn(name string, values []float64) error {
	if _, ok := f.columns[name]; ok {
		return fmt.Errorf("%w: %q", ErrColumnExists, name)
	}
	if len(values) != len(f.bars) {
		return fmt.Errorf("column %q has %d values, frame has %d bars", name, len(values), len(f.bars))
	}
	f.columns[name] = values
	f.names = append(f.names, name)
	return nil
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]float64, bool) {
	c, ok := f.columns[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(c), true
}

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string { return slices.Clone(f.names) }

// Row returns a read-only view of index i.
func (f *Frame) Row(i int) Row { return Row{frame: f, index: i} }

// Row is one index of a Frame.
type Row struct {
	frame *Frame
	index int
}

// Index returns the bar index of the row.
func (r Row) Index() int { return r.index }

// Bar returns the observation at the row.
func (r Row) Bar() Bar { return r.frame.bars[r.index] }

// Value returns the named indicator at the row, or NaN if the column does not
// exist.
func (r Row) Value(name string) float64 {
	c, ok := r.frame.columns[name]
	if !ok {
		return math.NaN()
	}
	return c[r.index]
}
