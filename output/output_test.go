package output

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/tree"
)

func sampleOutput() *JSONOutput {
	out := NewJSONOutput("static", time.Now())
	out.Metadata.SessionID = "3f1c"
	out.General = General{
		LogFile:         "/tmp/search.csv",
		ManifestFile:    "/tmp/vars.txt",
		ObjectiveDomain: "cost",
		TotalRecords:    201,
		Variables:       12,
		VariableGroups:  3,
		Parsing: Parsing{
			DurationMS:    12,
			RatePerSecond: 16750,
			Rows:          200,
		},
	}
	out.Totals = Totals{Nodes: 201, Time: 200, Failures: 40, Solutions: 3}
	out.Aggregations = []Aggregation{
		{
			Name:       "variables",
			Parameters: AggregationParameters{Key: "variable", LeftOnly: true},
			Buckets: []Bucket{
				{Key: "x_1_1", CountNodes: 10, CountLeftNodes: 10, PercentNodes: 4.97},
				{Key: "x_1_2", CountNodes: 7, CountLeftNodes: 7, PercentNodes: 3.48},
			},
		},
		{
			Name:       "variablesPerRestart",
			Parameters: AggregationParameters{Key: "variable", SecondKey: "restartId"},
			Buckets: []Bucket{
				{Key: "x_1_1", SecondKey: "0", CountNodes: 4},
				{Key: "x_1_1", SecondKey: "1", CountNodes: 6},
				{Key: "x_1_2", SecondKey: "1", CountNodes: 0},
			},
		},
	}
	restart := 1
	out.Timeline = &Timeline{
		Percent: 1,
		Buckets: []TimelineBucket{{Index: 0, Count: 3, Nogoods: 1}, {Index: 1, Count: 2, Solutions: 1}},
	}
	out.Grids = []Grid{
		{
			Group: "x", Rows: 2, Cols: 2, Max: 6,
			Cells: []GridCell{
				{Row: 1, Col: 1, Variable: "x_2_2", Count: 1},
				{Row: 0, Col: 0, Variable: "x_1_1", Count: 6, CountLeft: 4},
			},
		},
		{Group: "b", Restart: &restart, Rows: 1, Cols: 3},
	}
	return out
}

func TestJSONOutput_ToJSON_RoundTrip(t *testing.T) {
	out := sampleOutput()
	out.Metadata.Version = "2.0.0"
	out.AddWarning("dangling_parent", "nodes whose parent is not in the log", 42)

	// Serialize to JSON
	data, err := out.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}

	// Deserialize back
	var restored JSONOutput
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if restored.Metadata.AnalysisType != "static" {
		t.Errorf("AnalysisType = %q, want %q", restored.Metadata.AnalysisType, "static")
	}
	if restored.Metadata.SessionID != "3f1c" {
		t.Errorf("SessionID = %q, want %q", restored.Metadata.SessionID, "3f1c")
	}
	if restored.General.TotalRecords != 201 {
		t.Errorf("TotalRecords = %d, want %d", restored.General.TotalRecords, 201)
	}
	if restored.Totals != out.Totals {
		t.Errorf("Totals = %+v, want %+v", restored.Totals, out.Totals)
	}
	if len(restored.Aggregations) != 2 {
		t.Fatalf("len(Aggregations) = %d, want 2", len(restored.Aggregations))
	}
	if restored.Aggregations[1].Buckets[1].SecondKey != "1" {
		t.Errorf("SecondKey = %q, want %q", restored.Aggregations[1].Buckets[1].SecondKey, "1")
	}
	if restored.Timeline == nil || len(restored.Timeline.Buckets) != 2 {
		t.Fatalf("Timeline did not survive the round trip: %+v", restored.Timeline)
	}
	if restored.Grids[1].Restart == nil || *restored.Grids[1].Restart != 1 {
		t.Errorf("Grid restart did not survive the round trip")
	}
	if restored.Grids[0].Restart != nil {
		t.Errorf("Session wide grid must not carry a restart")
	}
	if len(restored.Warnings) != 1 || restored.Warnings[0].Count != 42 {
		t.Errorf("Warnings = %+v", restored.Warnings)
	}

	// Also verify compact JSON round-trips
	compact, err := out.ToCompactJSON()
	if err != nil {
		t.Fatalf("ToCompactJSON() error: %v", err)
	}
	var restoredCompact JSONOutput
	if err := json.Unmarshal(compact, &restoredCompact); err != nil {
		t.Fatalf("Unmarshal compact error: %v", err)
	}
	if restoredCompact.General.TotalRecords != 201 {
		t.Errorf("compact round-trip TotalRecords = %d, want %d", restoredCompact.General.TotalRecords, 201)
	}
}

func TestJSONOutput_EmptyListsSerialize(t *testing.T) {
	data, err := NewJSONOutput("live", time.Now()).ToCompactJSON()
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"aggregations":[]`, `"warnings":[]`, `"errors":[]`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("expected %s in %s", field, data)
		}
	}
	if strings.Contains(string(data), "timeline") {
		t.Error("absent timeline must be omitted")
	}
}

func TestJSONOutput_Aggregation(t *testing.T) {
	out := sampleOutput()
	agg, ok := out.Aggregation("variables")
	if !ok {
		t.Fatal("expected variables aggregation")
	}
	agg.Buckets = nil
	if len(out.Aggregations[0].Buckets) != 0 {
		t.Error("Aggregation must return a pointer into the output")
	}
	if _, ok := out.Aggregation("missing"); ok {
		t.Error("unexpected aggregation")
	}
}

func TestJSONOutput_AddWarning_Concurrent(t *testing.T) {
	out := NewJSONOutput("static", time.Now())

	const goroutines = 10
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			out.AddWarning("concurrent", fmt.Sprintf("warning from goroutine %d", id), id)
		}(i)
	}
	wg.Wait()

	if len(out.Warnings) != goroutines {
		t.Errorf("len(Warnings) = %d, want %d", len(out.Warnings), goroutines)
	}

	// Verify all goroutine IDs are represented
	seen := make(map[int]bool)
	for _, w := range out.Warnings {
		seen[w.Count] = true
	}
	for i := 0; i < goroutines; i++ {
		if !seen[i] {
			t.Errorf("missing warning from goroutine %d", i)
		}
	}
}

func TestJSONOutput_AddError_Concurrent(t *testing.T) {
	out := NewJSONOutput("static", time.Now())

	const goroutines = 10
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			out.AddError("concurrent", fmt.Sprintf("error from goroutine %d", id), id)
		}(i)
	}
	wg.Wait()

	if len(out.Errors) != goroutines {
		t.Errorf("len(Errors) = %d, want %d", len(out.Errors), goroutines)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input int
		want  string
	}{
		{0, "0"},
		{1, "1"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.input), func(t *testing.T) {
			got := FormatNumber(tt.input)
			if got != tt.want {
				t.Errorf("FormatNumber(%d) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatFloat(t *testing.T) {
	if got := FormatFloat(math.NaN(), 2); got != "NA" {
		t.Errorf("FormatFloat(NaN) = %q", got)
	}
	if got := FormatFloat(math.Inf(1), 2); got != "NA" {
		t.Errorf("FormatFloat(Inf) = %q", got)
	}
	if got := FormatFloat(2.345, 1); got != "2.3" {
		t.Errorf("FormatFloat(2.345) = %q", got)
	}
}

func chartForest(t *testing.T) *tree.Forest {
	t.Helper()
	var records []*ingestor.Record
	for i := 0; i < 30; i++ {
		r := ingestor.NewRecord()
		r.ID = int64(i)
		r.ParentID = int64(i/2) - 1
		r.Status = ingestor.StatusBranch
		r.Label = fmt.Sprintf("x_%d == 1", i%4)
		records = append(records, r)
	}
	records = append(records, ingestor.NewSyntheticRoot(len(records)))
	return tree.Build(records, tree.Options{})
}

func TestPlotCharts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts.html")
	if err := PlotCharts(sampleOutput(), chartForest(t), path); err != nil {
		t.Fatalf("PlotCharts() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)
	for _, want := range []string{"Search Tree by Subtree Size", "Search Timeline", "variables by variable", "Variable grid x"} {
		if !strings.Contains(html, want) {
			t.Errorf("chart page is missing %q", want)
		}
	}
}

func TestPlotChartsWithoutForest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts.html")
	if err := PlotCharts(NewJSONOutput("live", time.Now()), nil, path); err != nil {
		t.Fatalf("PlotCharts() error: %v", err)
	}
	if err := PlotCharts(nil, nil, filepath.Join(t.TempDir(), "missing", "charts.html")); err == nil {
		t.Error("expected error for unwritable path")
	}
}

func TestSunburstNodeSizes(t *testing.T) {
	f := chartForest(t)
	node, size := sunburstNode(f.Roots[0], 0)
	if size != len(f.Records) {
		t.Errorf("size = %d, want %d", size, len(f.Records))
	}
	if node.Value != float64(size) {
		t.Errorf("Value = %v, want %d", node.Value, size)
	}
}

func TestMakeRange(t *testing.T) {
	if got := makeRange(0, 2); len(got) != 3 || got[2] != 2 {
		t.Errorf("makeRange(0, 2) = %v", got)
	}
	if got := makeRange(0, -1); len(got) != 0 {
		t.Errorf("makeRange(0, -1) = %v", got)
	}
}

func BenchmarkToJSON(b *testing.B) {
	out := sampleOutput()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		out.ToJSON()
	}
}

func BenchmarkToCompactJSON(b *testing.B) {
	out := sampleOutput()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		out.ToCompactJSON()
	}
}

func BenchmarkFormatNumber(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		FormatNumber(1234567)
	}
}
