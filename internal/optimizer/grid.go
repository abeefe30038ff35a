package optimizer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"tradelab/internal/strategy"
)

// ErrInvalidGrid is returned for empty or malformed parameter grids.
var ErrInvalidGrid = errors.New("invalid parameter grid")

// Param is one grid axis: a parameter name and the values to try.
type Param struct {
	Name   string    `yaml:"name" json:"name"`
	Values []float64 `yaml:"values" json:"values"`
}

// Grid is an ordered list of axes. Combinations vary the last axis fastest.
type Grid []Param

// Validate checks that the grid has at least one axis, that every axis has a
// unique non-empty name and at least one finite value.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return fmt.Errorf("%w: no parameters", ErrInvalidGrid)
	}
	seen := make(map[string]bool, len(g))
	for _, p := range g {
		if p.Name == "" {
			return fmt.Errorf("%w: empty parameter name", ErrInvalidGrid)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidGrid, p.Name)
		}
		seen[p.Name] = true
		if len(p.Values) == 0 {
			return fmt.Errorf("%w: parameter %q has no values", ErrInvalidGrid, p.Name)
		}
		for _, v := range p.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: parameter %q has non-finite value %v", ErrInvalidGrid, p.Name, v)
			}
		}
	}
	return nil
}

// Size returns the number of combinations.
func (g Grid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, p := range g {
		n *= len(p.Values)
	}
	return n
}

// Combinations enumerates the Cartesian product in deterministic order, the
// last axis varying fastest. Every returned map is independent.
func (g Grid) Combinations() []strategy.Params {
	size := g.Size()
	out := make([]strategy.Params, 0, size)
	idx := make([]int, len(g))
	for range size {
		p := make(strategy.Params, len(g))
		for j, axis := range g {
			p[axis.Name] = axis.Values[idx[j]]
		}
		out = append(out, p)

		for j := len(g) - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < len(g[j].Values) {
				break
			}
			idx[j] = 0
		}
	}
	return out
}

// ParseGrid parses "name=v1,v2;name2=v3" into a Grid, preserving axis order.
func ParseGrid(s string) (Grid, error) {
	var g Grid
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, list, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not name=values", ErrInvalidGrid, part)
		}
		p := Param{Name: strings.TrimSpace(name)}
		for _, v := range strings.Split(list, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: parameter %q: %v", ErrInvalidGrid, p.Name, err)
			}
			p.Values = append(p.Values, f)
		}
		g = append(g, p)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
