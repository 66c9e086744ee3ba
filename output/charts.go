package output

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/tree"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	// SunburstDepth is how many levels below the forest roots the sunburst
	// draws. Deeper nodes only contribute to the size of their ancestors.
	SunburstDepth = 6
	// TreeChartDepth is the number of levels the tree chart expands.
	TreeChartDepth = 4
)

var heatColors = []string{"#ffff8f", "#ff0000", "#000000"}

// PlotCharts renders the charts page to filename.
func PlotCharts(out *JSONOutput, forest *tree.Forest, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create chart file %s: %w", filename, err)
	}
	defer f.Close()

	if err := RenderCharts(f, out, forest); err != nil {
		return err
	}

	fmt.Printf("Charts saved to %s\n", filename)
	return nil
}

// RenderCharts writes the forest and the analysis result as one interactive
// HTML page: a sunburst and a tree of the search, the timeline, one bar chart
// per single key view, one heatmap per cross view and one per variable grid.
func RenderCharts(w io.Writer, out *JSONOutput, forest *tree.Forest) error {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = "Search Tree Overview"

	if forest != nil && len(forest.Roots) > 0 {
		page.AddCharts(sunburstChart(forest), treeChart(forest))
	}
	if out != nil {
		if out.Timeline != nil && len(out.Timeline.Buckets) > 0 {
			page.AddCharts(timelineChart(out.Timeline))
		}
		for i := range out.Aggregations {
			agg := &out.Aggregations[i]
			if agg.Parameters.SecondKey == "" {
				page.AddCharts(aggregationChart(agg))
			} else {
				page.AddCharts(crossChart(agg))
			}
		}
		for i := range out.Grids {
			page.AddCharts(gridChart(&out.Grids[i]))
		}
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("rendering charts: %w", err)
	}
	return nil
}

func initOpts(title string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle:       title,
		Width:           "90vw",
		Height:          "80vh",
		Theme:           types.ThemeVintage,
		BackgroundColor: "transparent",
	})
}

func nodeName(rec *ingestor.Record) string {
	if rec.ID == ingestor.RootID {
		return "root"
	}
	if rec.Label != "" {
		return rec.Label
	}
	return fmt.Sprintf("node %d", rec.ID)
}

// sunburstNode returns the sunburst entry of rec and the number of nodes in
// its subtree.
func sunburstNode(rec *ingestor.Record, depth int) (*opts.SunBurstData, int) {
	node := &opts.SunBurstData{Name: nodeName(rec)}
	size := 1
	for _, child := range rec.Children {
		c, n := sunburstNode(child, depth+1)
		size += n
		if depth < SunburstDepth {
			node.Children = append(node.Children, c)
		}
	}
	node.Value = float64(size)
	return node, size
}

func sunburstChart(forest *tree.Forest) *charts.Sunburst {
	data := make([]opts.SunBurstData, 0, len(forest.Roots))
	for _, root := range forest.Roots {
		node, _ := sunburstNode(root, 0)
		data = append(data, *node)
	}

	sunburst := charts.NewSunburst()
	sunburst.SetGlobalOptions(
		initOpts("Search Sunburst"),
		charts.WithTitleOpts(opts.Title{
			Title:    "Search Tree by Subtree Size",
			Subtitle: fmt.Sprintf("%d roots, first %d levels", len(forest.Roots), SunburstDepth),
			Left:     "center",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Trigger: "item",
			Formatter: opts.FuncOpts(`function (params) {
		return params.name + '<br />Nodes: ' + params.value;
	}`),
		}),
	)
	sunburst.AddSeries("Search", data)
	return sunburst
}

func treeNode(rec *ingestor.Record, depth int) *opts.TreeData {
	node := &opts.TreeData{
		Name: fmt.Sprintf("%s [%s]", nodeName(rec), rec.Status),
	}
	if depth >= TreeChartDepth {
		if len(rec.Children) > 0 {
			node.Name += fmt.Sprintf(" +%d", len(rec.Children))
		}
		return node
	}
	for _, child := range rec.Children {
		node.Children = append(node.Children, treeNode(child, depth+1))
	}
	return node
}

func treeChart(forest *tree.Forest) *charts.Tree {
	// several restarts share one artificial top node
	top := &opts.TreeData{Name: "search"}
	for _, root := range forest.Roots {
		top.Children = append(top.Children, treeNode(root, 0))
	}

	t := charts.NewTree()
	t.SetGlobalOptions(
		initOpts("Search Tree"),
		charts.WithTitleOpts(opts.Title{
			Title:    "Search Tree",
			Subtitle: fmt.Sprintf("first %d levels, max depth %d", TreeChartDepth, forest.MaxDepth()),
			Left:     "center",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "item"}),
	)
	t.AddSeries("Search", []opts.TreeData{*top}, charts.WithTreeOpts(opts.TreeChart{
		Layout: "orthogonal",
		Orient: "LR",
	}))
	return t
}

func timelineChart(tl *Timeline) *charts.Bar {
	x := make([]int, 0, len(tl.Buckets))
	counts := make([]opts.BarData, 0, len(tl.Buckets))
	nogoods := make([]opts.BarData, 0, len(tl.Buckets))
	solutions := make([]opts.BarData, 0, len(tl.Buckets))
	future := make([]opts.BarData, 0, len(tl.Buckets))
	for _, b := range tl.Buckets {
		x = append(x, b.Index)
		counts = append(counts, opts.BarData{Value: b.Count})
		nogoods = append(nogoods, opts.BarData{Value: b.Nogoods})
		solutions = append(solutions, opts.BarData{Value: b.Solutions})
		future = append(future, opts.BarData{Value: b.FutureNogoods})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts("Search Timeline"),
		charts.WithTitleOpts(opts.Title{
			Title:    "Search Timeline",
			Subtitle: fmt.Sprintf("%v%% of nodes per bucket", tl.Percent),
			Left:     "center",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Bucket", Type: "category"}),
	)
	bar.SetXAxis(x).
		AddSeries("Nodes", counts).
		AddSeries("Nogoods", nogoods).
		AddSeries("Solutions", solutions).
		AddSeries("Future nogoods", future)
	return bar
}

func aggregationChart(agg *Aggregation) *charts.Bar {
	keys := make([]string, 0, len(agg.Buckets))
	nodes := make([]opts.BarData, 0, len(agg.Buckets))
	elapsed := make([]opts.BarData, 0, len(agg.Buckets))
	failed := make([]opts.BarData, 0, len(agg.Buckets))
	for _, b := range agg.Buckets {
		keys = append(keys, b.Key)
		nodes = append(nodes, opts.BarData{Value: b.PercentNodes})
		elapsed = append(elapsed, opts.BarData{Value: b.PercentTime})
		failed = append(failed, opts.BarData{Value: b.PercentFailuresOfTotal})
	}

	subtitle := "all branches"
	if agg.Parameters.LeftOnly {
		subtitle = "left branches only"
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(agg.Name),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s by %s", agg.Name, agg.Parameters.Key),
			Subtitle: subtitle,
			Left:     "center",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: agg.Parameters.Key, Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%"}),
	)
	bar.SetXAxis(keys).
		AddSeries("% nodes", nodes).
		AddSeries("% time", elapsed).
		AddSeries("% failures", failed)
	return bar
}

func heatmap(title, subtitle string, maxCount int, x, y interface{}, xName, yName string) *charts.HeatMap {
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(false),
		}),
		initOpts(title),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
			Left:     "center",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Trigger: "item",
			Formatter: opts.FuncOpts(`function (params) {
		return params.name + '<br />Count: ' + params.value[2];
	}`),
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show: opts.Bool(true),
			Min:  0,
			Max:  float32(maxCount),
			InRange: &opts.VisualMapInRange{
				Color: heatColors,
			},
			Orient: "vertical",
			Right:  "5%",
			Top:    "middle",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: xName,
			Type: "category",
			Data: x,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: yName,
			Type: "category",
			Data: y,
		}),
	)
	return hm
}

func crossChart(agg *Aggregation) *charts.HeatMap {
	outerIdx := make(map[string]int)
	innerIdx := make(map[string]int)
	var outer, inner []string
	for _, b := range agg.Buckets {
		if _, ok := outerIdx[b.Key]; !ok {
			outerIdx[b.Key] = len(outer)
			outer = append(outer, b.Key)
		}
		if _, ok := innerIdx[b.SecondKey]; !ok {
			innerIdx[b.SecondKey] = len(inner)
			inner = append(inner, b.SecondKey)
		}
	}

	var data []opts.HeatMapData
	maxCount := 0
	for _, b := range agg.Buckets {
		if b.CountNodes == 0 {
			continue
		}
		if b.CountNodes > maxCount {
			maxCount = b.CountNodes
		}
		data = append(data, opts.HeatMapData{
			Value: [3]interface{}{outerIdx[b.Key], innerIdx[b.SecondKey], b.CountNodes},
			Name:  fmt.Sprintf("%s / %s", b.Key, b.SecondKey),
		})
	}

	hm := heatmap(
		fmt.Sprintf("%s by %s and %s", agg.Name, agg.Parameters.Key, agg.Parameters.SecondKey),
		"node count", maxCount, outer, inner,
		agg.Parameters.Key, agg.Parameters.SecondKey,
	)
	hm.AddSeries(agg.Name, data)
	return hm
}

func gridChart(g *Grid) *charts.HeatMap {
	cells := append([]GridCell(nil), g.Cells...)
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})

	data := make([]opts.HeatMapData, 0, len(cells))
	for _, c := range cells {
		data = append(data, opts.HeatMapData{
			Value: [3]interface{}{c.Col, c.Row, c.Count},
			Name:  fmt.Sprintf("%s (left %d, failed %d)", c.Variable, c.CountLeft, c.Failures),
		})
	}

	subtitle := "all restarts"
	if g.Restart != nil {
		subtitle = fmt.Sprintf("restart %d", *g.Restart)
	}
	hm := heatmap(
		fmt.Sprintf("Variable grid %s", g.Group), subtitle, g.Max,
		makeRange(0, g.Cols-1), makeRange(0, g.Rows-1),
		"column", "row",
	)
	hm.AddSeries(g.Group, data)
	return hm
}

// makeRange creates an integer slice [min..max]
func makeRange(min, max int) []int {
	if max < min {
		return []int{}
	}
	r := make([]int, max-min+1)
	for i := range r {
		r[i] = min + i
	}
	return r
}
