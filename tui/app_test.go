package tui

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ChristianF88/searchviz/analysis"
	"github.com/ChristianF88/searchviz/host"
	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/output"
	"github.com/ChristianF88/searchviz/testutil"
)

type recordingSink struct {
	mu    sync.Mutex
	calls [][]int64
	err   error
}

func (s *recordingSink) NotifySelection(id int64) error {
	return s.NotifySelectionMany([]int64{id})
}

func (s *recordingSink) NotifySelectionMany(ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ids)
	return s.err
}

func itoa(n int) string { return strconv.Itoa(n) }

func newTestSession(t *testing.T) *analysis.Session {
	t.Helper()
	src := host.StaticSource{Log: testutil.GenerateSearchLog(60, 20), Manifest: testutil.Manifest}
	session, err := analysis.NewSession(context.Background(), src, analysis.SessionOptions{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return session
}

func newLoadedApp(t *testing.T, sink host.Sink) (*App, *analysis.Session) {
	t.Helper()
	session := newTestSession(t)
	result := output.NewJSONOutput("static", time.Now())
	analysis.FillOutput(result, session)

	app := NewAppFromConfig(nil, sink)
	app.load(result, session)
	app.displayResults()
	return app, session
}

func TestDisplayResults(t *testing.T) {
	app, session := newLoadedApp(t, nil)

	if !app.analysisComplete.Load() {
		t.Error("load should mark the analysis complete")
	}

	root := app.forest.GetRoot()
	if root == nil {
		t.Fatal("forest view has no root")
	}
	if got := len(root.GetChildren()); got != len(session.Forest.Roots) {
		t.Errorf("forest view has %d roots, want %d", got, len(session.Forest.Roots))
	}

	if app.aggregates.GetRowCount() < 2 {
		t.Errorf("aggregate table should have a header and rows, has %d rows", app.aggregates.GetRowCount())
	}
	if !strings.Contains(app.summary.GetText(true), "Records:") {
		t.Error("summary should list the record count")
	}
	if app.details.GetText(true) == "" {
		t.Error("details should describe the first root")
	}
}

func TestDisplayResultsWithoutSession(t *testing.T) {
	app := NewAppFromConfig(nil, nil)
	app.displayResults()
	if app.forest.GetRoot() != nil {
		t.Error("nothing should be displayed before a session is loaded")
	}
}

func TestNodeSelectionExpandsAndNotifies(t *testing.T) {
	sink := &recordingSink{}
	app, session := newLoadedApp(t, sink)

	node := app.forest.GetRoot().GetChildren()[0]
	rec := node.GetReference().(*ingestor.Record)
	if len(node.GetChildren()) != 0 {
		t.Fatal("nodes should start collapsed without children")
	}

	app.onNodeSelected(node)

	if got := len(node.GetChildren()); got != len(rec.Children) {
		t.Errorf("expanded node has %d children, want %d", got, len(rec.Children))
	}
	if len(sink.calls) != 1 || len(sink.calls[0]) != 1 || sink.calls[0][0] != rec.SelectionID() {
		t.Errorf("sink calls = %v, want [[%d]]", sink.calls, rec.SelectionID())
	}

	// second selection collapses without adding children again
	app.onNodeSelected(node)
	if got := len(node.GetChildren()); got != len(rec.Children) {
		t.Errorf("children duplicated on reselect: %d", got)
	}
	if node.IsExpanded() {
		t.Error("second selection should collapse the node")
	}

	if _, ok := session.Forest.Lookup(rec.ID); !ok {
		t.Error("selected record should be in the forest")
	}
}

func TestBucketSelectionNotifies(t *testing.T) {
	sink := &recordingSink{}
	app, session := newLoadedApp(t, sink)

	_, view, ok := app.currentSessionView()
	if !ok {
		t.Fatal("session has no views")
	}
	bucket := app.aggregates.GetCell(1, 0).GetReference().(output.Bucket)

	app.onBucketSelected(1)

	want := session.BucketSelection(viewGrouping(view), bucket.Key, bucket.SecondKey)
	if len(sink.calls) != 1 {
		t.Fatalf("sink called %d times, want 1", len(sink.calls))
	}
	if got := sink.calls[0]; len(got) != len(want) {
		t.Errorf("selected %d ids, want %d", len(got), len(want))
	}

	// header row is not a bucket
	app.onBucketSelected(0)
	if len(sink.calls) != 1 {
		t.Error("header row should not notify")
	}
}

func TestSelectionErrorShownInStatusBar(t *testing.T) {
	sink := &recordingSink{err: errors.New("host gone")}
	app, _ := newLoadedApp(t, sink)

	app.onNodeSelected(app.forest.GetRoot().GetChildren()[0])
	if !strings.Contains(app.statusBar.GetText(true), "selection failed: host gone") {
		t.Errorf("status bar = %q", app.statusBar.GetText(true))
	}
}

func TestNextViewCycles(t *testing.T) {
	app, session := newLoadedApp(t, nil)

	seen := map[string]bool{}
	for range session.Views {
		_, view, _ := app.currentSessionView()
		seen[view.Name] = true
		app.nextView()
	}
	if len(seen) != len(session.Views) {
		t.Errorf("cycled through %d views, want %d", len(seen), len(session.Views))
	}
	if _, view, _ := app.currentSessionView(); view.Name != session.Views[0].Name {
		t.Errorf("cycling should wrap to %s, got %s", session.Views[0].Name, view.Name)
	}
}

func TestFocusCycle(t *testing.T) {
	app := NewAppFromConfig(nil, nil)

	tests := []struct {
		move func()
		want int
	}{
		{app.nextFocus, 1},
		{app.nextFocus, 2},
		{app.nextFocus, 3},
		{app.nextFocus, 0},
		{app.prevFocus, 3},
	}
	for i, tt := range tests {
		tt.move()
		if app.currentFocus != tt.want {
			t.Errorf("step %d: focus = %d, want %d", i, app.currentFocus, tt.want)
		}
	}
}

func TestBuildDiagnosticsText(t *testing.T) {
	result := output.NewJSONOutput("static", time.Now())
	if text := buildDiagnosticsText(result); !strings.Contains(text, "No warnings or errors") {
		t.Errorf("clean result text = %q", text)
	}

	result.Forest.Dangling = 2
	result.AddWarning("dangling_parent", "records reference missing parents", 2)
	result.AddError("parse", "bad payload", 1200)
	text := buildDiagnosticsText(result)
	for _, want := range []string{"Dangling parents:[white] 2", "dangling_parent", "bad payload", "(1,200)"} {
		if !strings.Contains(text, want) {
			t.Errorf("diagnostics missing %q in %q", want, text)
		}
	}
}

func TestBuildSummaryText(t *testing.T) {
	result := output.NewJSONOutput("live", time.Now())
	result.General.TotalRecords = 12345
	result.LiveStats = &output.LiveStats{WindowSize: 5000, Evicted: 10, Reparented: 3}

	text := buildSummaryText(result)
	for _, want := range []string{"12,345", "window 5,000", "reparented 3"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q in %q", want, text)
		}
	}
}
