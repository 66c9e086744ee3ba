package tui

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChristianF88/searchviz/analysis"
	"github.com/ChristianF88/searchviz/config"
	"github.com/ChristianF88/searchviz/host"
	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/output"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// App represents the TUI application
type App struct {
	app          *tview.Application
	pages        *tview.Pages
	progressView *tview.TextView
	resultsView  *tview.Flex
	gridView     *GridView
	statusBar    *tview.TextView

	// Results panels
	summary        *tview.TextView
	forest         *tview.TreeView
	aggregates     *tview.Table
	details        *tview.TextView
	diagnostics    *tview.TextView
	focusableItems []tview.Primitive
	currentFocus   int

	logFile      string
	manifestFile string

	// Shared mutable state protected by mu (accessed from background goroutines)
	mu          sync.Mutex
	jsonResult  *output.JSONOutput
	session     *analysis.Session
	currentView int
	lastNotice  string

	// Atomic flags for cross-goroutine signaling (no mutex needed)
	analysisComplete atomic.Bool

	sink host.Sink
	cfg  *config.Config
}

// NewAppFromConfig creates a new TUI application from config. Selections
// are reported to sink, which may be nil.
func NewAppFromConfig(cfg *config.Config, sink host.Sink) *App {
	app := &App{
		app:   tview.NewApplication(),
		pages: tview.NewPages(),
		cfg:   cfg,
		sink:  sink,
	}
	if cfg != nil && cfg.Static != nil {
		app.logFile = cfg.Static.LogFile
		app.manifestFile = cfg.Static.ManifestFile
	}

	app.setupUI()
	return app
}

// SetAnalysisResults hands the finished session to the UI.
func (a *App) SetAnalysisResults(result *output.JSONOutput, session *analysis.Session) {
	if result == nil || session == nil {
		a.ShowError("Analysis completed without a session")
		return
	}

	a.load(result, session)

	// Update UI to show results immediately
	a.app.QueueUpdateDraw(func() {
		a.displayResults()
		a.updateStatusBar()
		a.pages.SwitchToPage("results")
		a.app.SetFocus(a.getFocusedItem())
	})
}

func (a *App) load(result *output.JSONOutput, session *analysis.Session) {
	a.mu.Lock()
	a.jsonResult = result
	a.session = session
	a.currentView = 0
	a.mu.Unlock()

	a.gridView.SetSession(session)

	// Mark analysis as complete (atomic, no lock needed)
	a.analysisComplete.Store(true)
}

// ShowError displays an error message in the TUI and stops the progress animation
func (a *App) ShowError(message string) {
	a.app.QueueUpdateDraw(func() {
		a.progressView.SetText(fmt.Sprintf("[red]Error:[white] %s\n\n[yellow]Press 'q' to quit[white]", message))
		a.statusBar.SetText("[red]Analysis failed![white] | Press 'q' to quit")
		a.pages.SwitchToPage("progress")
	})
}

// setupUI initializes the user interface
func (a *App) setupUI() {
	// Create progress view
	a.progressView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false).
		SetWrap(false)
	a.progressView.SetBorder(true).SetTitle(" searchviz Progress ").SetTitleAlign(tview.AlignCenter)

	// Create results view (initially hidden)
	a.resultsView = tview.NewFlex().SetDirection(tview.FlexRow)
	a.setupResultsView()

	// Create status bar
	a.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetText("[yellow]Building session...[white] | Press 'q' to quit")
	a.statusBar.SetBorder(false)

	a.gridView = NewGridView()

	// Create main layout
	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.progressView, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	results := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.resultsView, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	grids := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.gridView.GetView(), 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	// Add pages
	a.pages.AddPage("progress", main, true, true)
	a.pages.AddPage("results", results, true, false)
	a.pages.AddPage("grids", grids, true, false)

	a.app.SetInputCapture(a.handleKey)
	a.app.SetRoot(a.pages, true)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q', 'Q':
		a.app.Stop()
		return nil
	case 'r', 'R':
		if a.analysisComplete.Load() {
			a.pages.SwitchToPage("results")
			a.app.SetFocus(a.getFocusedItem())
			a.updateStatusBar()
		}
		return nil
	case 'g', 'G':
		if a.analysisComplete.Load() {
			a.gridView.Render()
			a.pages.SwitchToPage("grids")
			a.updateStatusBar()
		}
		return nil
	case 'a', 'A':
		if a.analysisComplete.Load() {
			a.nextView()
		}
		return nil
	}

	frontPageName, _ := a.pages.GetFrontPage()

	// Handle navigation in results view
	if a.analysisComplete.Load() && frontPageName == "results" {
		switch event.Key() {
		case tcell.KeyTab:
			a.nextFocus()
			return nil
		case tcell.KeyBacktab:
			a.prevFocus()
			return nil
		}
		// tree and table handle their own keys
		if tv, ok := a.getFocusedItem().(*tview.TextView); ok {
			row, col := tv.GetScrollOffset()
			switch event.Key() {
			case tcell.KeyDown:
				tv.ScrollTo(row+1, col)
				return nil
			case tcell.KeyUp:
				if row > 0 {
					tv.ScrollTo(row-1, col)
				}
				return nil
			case tcell.KeyPgDn:
				tv.ScrollTo(row+10, col)
				return nil
			case tcell.KeyPgUp:
				tv.ScrollTo(max(row-10, 0), col)
				return nil
			}
		}
	}

	// Handle navigation in grid view
	if a.analysisComplete.Load() && frontPageName == "grids" {
		switch event.Key() {
		case tcell.KeyLeft:
			a.gridView.PrevGroup()
			a.updateStatusBar()
			return nil
		case tcell.KeyRight:
			a.gridView.NextGroup()
			a.updateStatusBar()
			return nil
		}
		switch event.Rune() {
		case '[':
			a.gridView.PrevRestart()
			a.updateStatusBar()
			return nil
		case ']':
			a.gridView.NextRestart()
			a.updateStatusBar()
			return nil
		}
	}

	return event
}

// setupResultsView creates the results display layout
func (a *App) setupResultsView() {
	// Summary panel
	a.summary = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	a.summary.SetBorder(true).SetTitle(" Summary ").SetTitleAlign(tview.AlignLeft)

	// Search forest, children are added when a node is first expanded
	a.forest = tview.NewTreeView()
	a.forest.SetBorder(true).SetTitle(" Search Tree ").SetTitleAlign(tview.AlignLeft)
	a.forest.SetChangedFunc(func(node *tview.TreeNode) {
		if rec, ok := node.GetReference().(*ingestor.Record); ok {
			session, _, _ := a.currentSessionView()
			a.details.SetText(buildDetailsText(session, rec))
		}
	})
	a.forest.SetSelectedFunc(a.onNodeSelected)

	// Aggregation table
	a.aggregates = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.aggregates.SetBorder(true).SetTitle(" Aggregation ").SetTitleAlign(tview.AlignLeft)
	a.aggregates.SetSelectedFunc(func(row, _ int) {
		a.onBucketSelected(row)
	})

	// Node details
	a.details = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	a.details.SetBorder(true).SetTitle(" Node ").SetTitleAlign(tview.AlignLeft)

	// Warnings/Errors
	a.diagnostics = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.diagnostics.SetBorder(true).SetTitle(" Diagnostics ").SetTitleAlign(tview.AlignLeft)

	// Set up focusable items
	a.focusableItems = []tview.Primitive{a.forest, a.aggregates, a.details, a.diagnostics}
	a.currentFocus = 0
	a.updateFocusBorders()

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.details, 0, 1, false).
		AddItem(a.diagnostics, 0, 1, false)

	bottomRow := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(a.forest, 0, 2, false).
		AddItem(a.aggregates, 0, 2, false).
		AddItem(right, 0, 1, false)

	a.resultsView.
		AddItem(a.summary, 8, 0, false).
		AddItem(bottomRow, 0, 1, false)
}

// Run starts the TUI application
func (a *App) Run() error {
	// Analysis is done in the CLI layer before results arrive
	go a.animateProgress()
	return a.app.Run()
}

// animateProgress shows a progress animation until the session is built
func (a *App) animateProgress() {
	stages := []string{
		"[yellow]▶[white] Reading variable manifest...",
		"[blue]▶[white] Loading search log...",
		"[cyan]▶[white] Normalizing records...",
		"[green]▶[white] Linking search forest...",
		"[magenta]▶[white] Aggregating views...",
		"[yellow]▶[white] Laying out variable grids...",
	}

	views := len(analysis.DefaultViews())
	if a.cfg != nil && len(a.cfg.StaticViews) > 0 {
		views = len(a.cfg.StaticViews)
	}

	stageIndex := 0
	dots := 0

	for !a.analysisComplete.Load() {
		stage := stages[stageIndex%len(stages)]
		dotStr := strings.Repeat(".", dots%4)

		content := fmt.Sprintf(`
[white::b]searchviz[white::-]

%s%s

[dim]Search log:[white] %s
[dim]Manifest:[white] %s
[dim]Views:[white] %d

[dim]Press 'q' to quit[white]
`, stage, dotStr, a.logFile, a.manifestFile, views)

		a.app.QueueUpdateDraw(func() {
			a.progressView.SetText(content)
		})

		time.Sleep(200 * time.Millisecond)
		dots++

		if dots%20 == 0 {
			stageIndex++
		}
	}
}

// displayResults populates the results view with session data
func (a *App) displayResults() {
	a.mu.Lock()
	result, session, viewIndex := a.jsonResult, a.session, a.currentView
	a.mu.Unlock()
	if result == nil || session == nil {
		return
	}

	a.summary.SetText(buildSummaryText(result))
	a.diagnostics.SetText(buildDiagnosticsText(result))

	root := tview.NewTreeNode(fmt.Sprintf("search (%d roots)", len(session.Forest.Roots))).
		SetSelectable(false)
	for _, r := range session.Forest.Roots {
		root.AddChild(newTreeNode(r))
	}
	a.forest.SetRoot(root)
	if children := root.GetChildren(); len(children) > 0 {
		a.forest.SetCurrentNode(children[0])
		a.details.SetText(buildDetailsText(session, session.Forest.Roots[0]))
	}

	if len(session.Views) > 0 {
		fillAggregateTable(a.aggregates, session.Views[viewIndex%len(session.Views)])
	}
}

// nextView cycles the aggregation table through the session's views
func (a *App) nextView() {
	a.mu.Lock()
	if a.session == nil || len(a.session.Views) == 0 {
		a.mu.Unlock()
		return
	}
	a.currentView = (a.currentView + 1) % len(a.session.Views)
	view := a.session.Views[a.currentView]
	a.mu.Unlock()

	fillAggregateTable(a.aggregates, view)
	a.updateStatusBar()
}

func (a *App) currentSessionView() (*analysis.Session, analysis.View, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil || len(a.session.Views) == 0 {
		return a.session, analysis.View{}, false
	}
	return a.session, a.session.Views[a.currentView%len(a.session.Views)], true
}

// onNodeSelected expands a node on first use and reports it to the host
func (a *App) onNodeSelected(node *tview.TreeNode) {
	rec, ok := node.GetReference().(*ingestor.Record)
	if !ok {
		return
	}
	if len(node.GetChildren()) == 0 && len(rec.Children) > 0 {
		for _, c := range rec.Children {
			node.AddChild(newTreeNode(c))
		}
		node.SetExpanded(true)
	} else {
		node.SetExpanded(!node.IsExpanded())
	}
	a.notify([]int64{rec.SelectionID()}, fmt.Sprintf("node %d", rec.ID))
}

// onBucketSelected reports every node counted in the selected table row
func (a *App) onBucketSelected(row int) {
	session, view, ok := a.currentSessionView()
	if !ok || row < 1 {
		return
	}
	ref, ok := a.aggregates.GetCell(row, 0).GetReference().(output.Bucket)
	if !ok {
		return
	}
	g := viewGrouping(view)
	ids := session.BucketSelection(g, ref.Key, ref.SecondKey)
	label := ref.Key
	if ref.SecondKey != "" {
		label += " / " + ref.SecondKey
	}
	a.notify(ids, fmt.Sprintf("%s %s", g.Key, label))
}

func (a *App) notify(ids []int64, what string) {
	if a.sink == nil {
		return
	}
	var err error
	if len(ids) == 1 {
		err = a.sink.NotifySelection(ids[0])
	} else {
		err = a.sink.NotifySelectionMany(ids)
	}

	a.mu.Lock()
	if err != nil {
		a.lastNotice = fmt.Sprintf("[red]selection failed: %v[white]", err)
	} else {
		a.lastNotice = fmt.Sprintf("[cyan]selected %s (%s ids)[white]", what, output.FormatNumber(len(ids)))
	}
	a.mu.Unlock()
	a.updateStatusBar()
}

// Navigation helper functions
func (a *App) nextFocus() {
	a.currentFocus = (a.currentFocus + 1) % len(a.focusableItems)
	a.updateFocusBorders()
	a.app.SetFocus(a.getFocusedItem())
	a.updateStatusBar()
}

func (a *App) prevFocus() {
	a.currentFocus = (a.currentFocus - 1 + len(a.focusableItems)) % len(a.focusableItems)
	a.updateFocusBorders()
	a.app.SetFocus(a.getFocusedItem())
	a.updateStatusBar()
}

func (a *App) getFocusedItem() tview.Primitive {
	if a.currentFocus >= 0 && a.currentFocus < len(a.focusableItems) {
		return a.focusableItems[a.currentFocus]
	}
	return nil
}

var panelNames = []string{"Search Tree", "Aggregation", "Node", "Diagnostics"}

func (a *App) updateFocusBorders() {
	for i, item := range a.focusableItems {
		box, ok := item.(interface {
			SetBorderColor(tcell.Color) *tview.Box
			SetTitle(string) *tview.Box
		})
		if !ok {
			continue
		}
		if i == a.currentFocus {
			box.SetBorderColor(tcell.ColorYellow)
			box.SetTitle(fmt.Sprintf(" [::b]%s[FOCUSED] ", panelNames[i]))
		} else {
			box.SetBorderColor(tcell.ColorDefault)
			box.SetTitle(fmt.Sprintf(" %s ", panelNames[i]))
		}
	}
}

func (a *App) updateStatusBar() {
	if !a.analysisComplete.Load() {
		a.statusBar.SetText("[yellow]Building session...[white] | 'q' to quit")
		return
	}

	a.mu.Lock()
	notice := a.lastNotice
	a.mu.Unlock()
	if notice != "" {
		notice += " | "
	}

	frontPageName, _ := a.pages.GetFrontPage()
	switch frontPageName {
	case "grids":
		a.statusBar.SetText(fmt.Sprintf("[green]Variable grids[white] | %s%s | ←→: group, [ ]: restart, 'r': results, 'q': quit",
			notice, a.gridView.Position()))
	default:
		viewName := "none"
		if _, view, ok := a.currentSessionView(); ok {
			viewName = view.Name
		}
		a.statusBar.SetText(fmt.Sprintf("[green]Session ready[white] | %s[yellow]%s[white] focused | view [cyan]%s[white] | Tab: panels, Enter: select, 'a': next view, 'g': grids, 'q': quit",
			notice, panelNames[a.currentFocus], viewName))
	}
}
