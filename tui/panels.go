package tui

import (
	"fmt"
	"strings"

	"github.com/ChristianF88/searchviz/analysis"
	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/output"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

var statusColors = map[ingestor.Status]tcell.Color{
	ingestor.StatusSolved:  tcell.ColorGreen,
	ingestor.StatusFailed:  tcell.ColorRed,
	ingestor.StatusBranch:  tcell.ColorWhite,
	ingestor.StatusSkipped: tcell.ColorGray,
}

// newTreeNode creates a collapsed tree node for rec. Its children are added
// on first selection.
func newTreeNode(rec *ingestor.Record) *tview.TreeNode {
	text := rec.Label
	if rec.Root {
		text = "root"
	}
	if len(rec.Children) > 0 {
		text = fmt.Sprintf("%s (%d)", text, len(rec.Children))
	}
	color, ok := statusColors[rec.Status]
	if !ok {
		color = tcell.ColorYellow
	}
	return tview.NewTreeNode(text).
		SetReference(rec).
		SetSelectable(true).
		SetColor(color)
}

func viewGrouping(v analysis.View) analysis.Grouping {
	switch {
	case v.Table != nil:
		return v.Table.Grouping
	case v.Cross != nil:
		return v.Cross.Grouping
	}
	return analysis.Grouping{}
}

// fillAggregateTable renders a view into table. Row cells in column 0 carry
// the bucket as reference so selection can resolve it.
func fillAggregateTable(table *tview.Table, v analysis.View) {
	table.Clear()
	agg := analysis.ViewOutput(v)
	cross := agg.Parameters.SecondKey != ""

	headers := []string{agg.Parameters.Key}
	if cross {
		headers = append(headers, agg.Parameters.SecondKey)
	}
	headers = append(headers, "Nodes", "Left", "%Nodes", "AvgDepth", "%Time", "Failed", "%Failed")
	for col, h := range headers {
		table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold))
	}

	for i, b := range agg.Buckets {
		row := i + 1
		cells := []string{b.Key}
		if cross {
			cells = append(cells, b.SecondKey)
		}
		cells = append(cells,
			output.FormatNumber(b.CountNodes),
			output.FormatNumber(b.CountLeftNodes),
			output.FormatFloat(b.PercentNodes, 2),
			output.FormatFloat(b.AverageDepth, 1),
			output.FormatFloat(b.PercentTime, 2),
			output.FormatNumber(b.FailureCount),
			output.FormatFloat(b.PercentFailedOfBucket, 1),
		)
		for col, text := range cells {
			cell := tview.NewTableCell(text)
			if col == 0 {
				cell.SetReference(b)
			} else {
				cell.SetAlign(tview.AlignRight)
			}
			table.SetCell(row, col, cell)
		}
	}
	table.SetTitle(fmt.Sprintf(" Aggregation: %s ", agg.Name))
	if len(agg.Buckets) > 0 {
		table.Select(1, 0)
	}
}

func buildSummaryText(result *output.JSONOutput) string {
	var b strings.Builder
	g := result.General
	fmt.Fprintf(&b, "[yellow]Session:[white] %s  [yellow]Type:[white] %s  [yellow]Built in:[white] %dms\n",
		result.Metadata.SessionID, result.Metadata.AnalysisType, result.Metadata.DurationMS)
	if g.LogFile != "" {
		fmt.Fprintf(&b, "[yellow]Log:[white] %s  [yellow]Manifest:[white] %s\n", g.LogFile, g.ManifestFile)
	}
	fmt.Fprintf(&b, "[yellow]Records:[white] %s  [yellow]Variables:[white] %d in %d groups  [yellow]Objective:[white] %s\n",
		output.FormatNumber(g.TotalRecords), g.Variables, g.VariableGroups, g.ObjectiveDomain)
	fmt.Fprintf(&b, "[yellow]Nodes:[white] %s  [yellow]Failures:[white] %s  [yellow]Solutions:[white] %s  [yellow]Time:[white] %s\n",
		output.FormatNumber(result.Totals.Nodes), output.FormatNumber(result.Totals.Failures),
		output.FormatNumber(result.Totals.Solutions), output.FormatFloat(result.Totals.Time, 3))
	f := result.Forest
	fmt.Fprintf(&b, "[yellow]Roots:[white] %d  [yellow]Restarts:[white] %d  [yellow]Max depth:[white] %d  [yellow]Leaves:[white] %s",
		f.Roots, f.Restarts, f.MaxDepth, output.FormatNumber(f.Leaves))
	if p := g.Parsing; p.Rows > 0 {
		fmt.Fprintf(&b, "\n[yellow]Parsed:[white] %s rows at %s/s (%d without id)",
			output.FormatNumber(p.Rows), output.FormatNumber(int(p.RatePerSecond)), p.MissingIDs)
	}
	if ls := result.LiveStats; ls != nil {
		fmt.Fprintf(&b, "\n[cyan]Live:[white] window %s, evicted %s, reparented %d",
			output.FormatNumber(ls.WindowSize), output.FormatNumber(ls.Evicted), ls.Reparented)
	}
	return b.String()
}

func buildDiagnosticsText(result *output.JSONOutput) string {
	var b strings.Builder
	f := result.Forest
	if f.Dangling > 0 || f.DanglingNogoods > 0 || f.Duplicates > 0 {
		fmt.Fprintf(&b, "[yellow]Dangling parents:[white] %d\n", f.Dangling)
		fmt.Fprintf(&b, "[yellow]Dangling nogoods:[white] %d\n", f.DanglingNogoods)
		fmt.Fprintf(&b, "[yellow]Duplicate ids:[white] %d\n\n", f.Duplicates)
	}
	if len(result.Warnings) == 0 && len(result.Errors) == 0 {
		b.WriteString("[green]No warnings or errors[white]")
		return b.String()
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(&b, "[yellow]⚠ %s:[white] %s", w.Type, w.Message)
		if w.Count > 0 {
			fmt.Fprintf(&b, " (%s)", output.FormatNumber(w.Count))
		}
		b.WriteString("\n")
	}
	for _, e := range result.Errors {
		fmt.Fprintf(&b, "[red]✗ %s:[white] %s", e.Type, e.Message)
		if e.Count > 0 {
			fmt.Fprintf(&b, " (%s)", output.FormatNumber(e.Count))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// buildDetailsText describes rec with its nogood links.
func buildDetailsText(session *analysis.Session, rec *ingestor.Record) string {
	var b strings.Builder
	b.WriteString(tview.Escape(analysis.Describe(rec)))
	fmt.Fprintf(&b, "\n\n[yellow]Status:[white] %s  [yellow]Restart:[white] %d  [yellow]Vis:[white] %d",
		rec.Status, rec.RestartID, rec.VisID)
	fmt.Fprintf(&b, "\n[yellow]Depth:[white] %s  [yellow]Decision level:[white] %s  [yellow]Time taken:[white] %s",
		output.FormatFloat(rec.Depth, 0), output.FormatFloat(rec.DecisionLevel, 0), output.FormatFloat(rec.TimeTaken, 4))
	if rec.Var.Defined() {
		fmt.Fprintf(&b, "\n[yellow]Variable:[white] %s  [yellow]Group:[white] %s", rec.Var.Variable, rec.Var.Group)
	}
	if rec.Reparented {
		b.WriteString("\n[cyan]parent left the live window[white]")
	}
	if session != nil && session.Forest != nil {
		uses, usedBy := session.Forest.NogoodLinks(rec.ID)
		if len(uses) > 0 {
			fmt.Fprintf(&b, "\n[yellow]Uses nogoods:[white] %v", uses)
		}
		if len(usedBy) > 0 {
			fmt.Fprintf(&b, "\n[yellow]Used by:[white] %v", usedBy)
		}
	}
	return b.String()
}
