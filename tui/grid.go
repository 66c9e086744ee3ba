package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ChristianF88/searchviz/analysis"
	"github.com/rivo/tview"
)

// GridView shows how often the search branched on each variable of a group,
// laid out by the variable's indices.
type GridView struct {
	view  *tview.TextView
	cache *GridCache

	mu       sync.Mutex
	session  *analysis.Session
	groups   []string
	group    int
	restart  int
	restarts int
}

// NewGridView creates an empty grid view
func NewGridView() *GridView {
	v := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	v.SetBorder(true).SetTitle(" Variable Grids ").SetTitleAlign(tview.AlignCenter)
	return &GridView{view: v, cache: NewGridCache(), restart: AllRestarts}
}

// GetView returns the primitive to place in a layout
func (g *GridView) GetView() *tview.TextView {
	return g.view
}

// SetSession switches to a new session and drops cached grids.
func (g *GridView) SetSession(s *analysis.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = s
	g.groups = nil
	g.restarts = 0
	if s != nil {
		if s.Catalogue != nil {
			g.groups = s.Catalogue.GroupNames()
		}
		if s.Forest != nil {
			g.restarts = s.Forest.Restarts()
		}
	}
	g.group = 0
	g.restart = AllRestarts
	g.cache.Clear()
}

func (g *GridView) NextGroup() { g.move(1, 0) }
func (g *GridView) PrevGroup() { g.move(-1, 0) }

// NextRestart steps through all restarts, then each restart in turn.
func (g *GridView) NextRestart() { g.move(0, 1) }
func (g *GridView) PrevRestart() { g.move(0, -1) }

func (g *GridView) move(dGroup, dRestart int) {
	g.mu.Lock()
	if n := len(g.groups); n > 0 {
		g.group = (g.group + dGroup + n) % n
	}
	// positions AllRestarts, 0 .. restarts-1
	span := g.restarts + 1
	g.restart = (g.restart+1+dRestart+span)%span - 1
	g.mu.Unlock()
	g.Render()
}

// Position describes the group and restart on screen.
func (g *GridView) Position() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.groups) == 0 {
		return "no variable groups"
	}
	restart := "all restarts"
	if g.restart != AllRestarts {
		restart = fmt.Sprintf("restart %d/%d", g.restart, g.restarts)
	}
	return fmt.Sprintf("group [cyan]%s[white] (%d/%d), %s", g.groups[g.group], g.group+1, len(g.groups), restart)
}

// Render draws the current grid, using the cache when possible.
func (g *GridView) Render() {
	g.mu.Lock()
	session := g.session
	if session == nil || len(g.groups) == 0 {
		g.mu.Unlock()
		g.view.SetText("[dim]No variable groups declared in the manifest[white]")
		return
	}
	key := GridKey{Group: g.groups[g.group], Restart: g.restart}
	g.mu.Unlock()

	if text, ok := g.cache.Get(key); ok {
		g.view.SetText(text)
		g.view.ScrollToBeginning()
		return
	}

	var restart *int
	if key.Restart != AllRestarts {
		r := key.Restart
		restart = &r
	}
	grid, err := session.Grid(key.Group, restart)
	if err != nil {
		g.view.SetText(fmt.Sprintf("[red]Error:[white] %v", err))
		return
	}
	text := renderGrid(grid)
	g.cache.Put(key, text)
	g.view.SetText(text)
	g.view.ScrollToBeginning()
}

// renderGrid draws each cell as three blocks shaded by its share of the
// busiest cell. Columns are labelled by their last index.
func renderGrid(grid *analysis.Grid) string {
	var content strings.Builder

	title := fmt.Sprintf("Variable group %s", grid.Group)
	if grid.Restart != nil {
		title += fmt.Sprintf(" (restart %d)", *grid.Restart)
	}
	content.WriteString(fmt.Sprintf("[white::b]%s[white::-]\n", title))
	content.WriteString(fmt.Sprintf("[dim]%d x %d variables, busiest cell %d branches[white]\n\n", grid.Rows, grid.Cols, grid.Max))

	if grid.Rows == 0 || grid.Cols == 0 {
		content.WriteString("[dim]Group has no cells[white]\n")
		return content.String()
	}

	cells := make([][]*analysis.GridCell, grid.Rows)
	for r := range cells {
		cells[r] = make([]*analysis.GridCell, grid.Cols)
	}
	for i := range grid.Cells {
		c := &grid.Cells[i]
		if c.Row >= 0 && c.Row < grid.Rows && c.Col >= 0 && c.Col < grid.Cols {
			cells[c.Row][c.Col] = c
		}
	}

	// Header
	content.WriteString("     ")
	for col := 0; col < grid.Cols; col++ {
		content.WriteString(fmt.Sprintf("%-4d", col+1))
	}
	content.WriteString("\n")

	for row := 0; row < grid.Rows; row++ {
		content.WriteString(fmt.Sprintf("%4d ", row+1))
		for col := 0; col < grid.Cols; col++ {
			c := cells[row][col]
			if c == nil {
				content.WriteString("[dim] ·  [white]")
				continue
			}
			intensity := 0.0
			if grid.Max > 0 {
				intensity = float64(c.Count) / float64(grid.Max)
			}
			color, char := intensityColorAndChar(c.Count, intensity)
			marker := char
			if c.Failures > 0 && c.Failures*2 >= c.Count {
				marker = "[red]●[" + color + "]"
			}
			content.WriteString(fmt.Sprintf("[%s]%s%s%s[white] ", color, char, marker, char))
		}
		content.WriteString("\n")
	}

	// Footer with color legend showing 10% intervals
	content.WriteString("\n[dim]Branch count (10% steps of busiest cell):[white]\n")
	content.WriteString("[black]███[white]=0% ")
	content.WriteString("[#202020]███[white]=0-10% ")
	content.WriteString("[#303030]███[white]=10-20% ")
	content.WriteString("[#404040]███[white]=20-30% ")
	content.WriteString("[#505050]███[white]=30-40%\n")
	content.WriteString("[#606060]███[white]=40-50% ")
	content.WriteString("[#808080]███[white]=50-60% ")
	content.WriteString("[#A0A0A0]███[white]=60-70% ")
	content.WriteString("[#C0C0C0]███[white]=70-80% ")
	content.WriteString("[#E0E0E0]███[white]=80-90% ")
	content.WriteString("[white]███[white]=90-100%\n")
	content.WriteString("[dim]Markers: [red]●[white]=at least half of the branches failed, [dim]·[white]=not declared[white]\n")
	return content.String()
}

// intensityColorAndChar returns color and character for a cell
// 10-level progression with 10% resolution: 0%, 10%, 20%, ..., 90%, 100%
func intensityColorAndChar(count int, intensity float64) (string, string) {
	switch {
	case count == 0:
		return "black", "█"
	case intensity >= 0.9:
		return "white", "█"
	case intensity >= 0.8:
		return "#E0E0E0", "█"
	case intensity >= 0.7:
		return "#C0C0C0", "█"
	case intensity >= 0.6:
		return "#A0A0A0", "█"
	case intensity >= 0.5:
		return "#808080", "█"
	case intensity >= 0.4:
		return "#606060", "█"
	case intensity >= 0.3:
		return "#505050", "█"
	case intensity >= 0.2:
		return "#404040", "█"
	case intensity >= 0.1:
		return "#303030", "█"
	default:
		return "#202020", "█"
	}
}
