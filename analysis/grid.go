package analysis

import (
	"fmt"
	"strconv"

	"github.com/ChristianF88/searchviz/variable"
)

// GridCell is one declared variable placed in its group's grid.
type GridCell struct {
	Row, Col  int
	Variable  string
	Count     int
	CountLeft int
	Failures  int
}

// Grid is the occupancy of a variable group: how often the search branched
// on each member. Max is the largest cell count, used to scale colours.
type Grid struct {
	Group   string
	Restart *int
	Rows    int
	Cols    int
	Cells   []GridCell
	Max     int
}

// BuildGrid lays out a group's declared variables by index and fills the
// cells from byVariable. With a restart, cells come from perRestart instead
// (keyed variable, then restart id). Members whose indices fall outside the
// group's dims are skipped.
func BuildGrid(cat *variable.Catalogue, group string, byVariable *Table, perRestart *CrossTable, restart *int) (*Grid, error) {
	g := cat.Group(group)
	if g == nil {
		return nil, fmt.Errorf("unknown variable group %q", group)
	}

	grid := &Grid{
		Group:   group,
		Restart: restart,
		Rows:    g.Rows(),
		Cols:    g.Cols(),
	}
	for _, d := range cat.Variables {
		if d.Group != group {
			continue
		}
		row, col, ok := 0, 0, len(g.Dims) == 0
		if !ok {
			row, col, ok = g.Cell(indexTokens(d.Indices))
		}
		if !ok {
			continue
		}

		var b Bucket
		if restart != nil {
			b = perRestart.Lookup(d.Name, strconv.Itoa(*restart))
		} else {
			b = byVariable.Lookup(d.Name)
		}
		grid.Cells = append(grid.Cells, GridCell{
			Row:       row,
			Col:       col,
			Variable:  d.Name,
			Count:     b.CountNodes,
			CountLeft: b.CountLeftNodes,
			Failures:  b.FailureCount,
		})
		if b.CountNodes > grid.Max {
			grid.Max = b.CountNodes
		}
	}
	return grid, nil
}

func indexTokens(indices []int) []string {
	out := make([]string, len(indices))
	for i, n := range indices {
		out[i] = strconv.Itoa(n)
	}
	return out
}
