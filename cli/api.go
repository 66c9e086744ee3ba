package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ChristianF88/searchviz/analysis"
	"github.com/ChristianF88/searchviz/config"
	"github.com/ChristianF88/searchviz/host"
	"github.com/ChristianF88/searchviz/output"
	"github.com/ChristianF88/searchviz/server"
	"github.com/ChristianF88/searchviz/tui"
)

// ============================================================================
// CONFIGURATION STRUCTS
// ============================================================================

// OutputConfig contains output formatting options
type OutputConfig struct {
	Compact bool
	Plain   bool
	TUI     bool
}

// StaticParams are the flag mode inputs of static and serve.
type StaticParams struct {
	LogFile         string
	ManifestFile    string
	ObjectiveDomain string
	SelectionFile   string
	PlotPath        string
	TimelinePercent float64
	Views           map[string]*config.ViewConfig
}

// LiveParams are the flag mode inputs of live.
type LiveParams struct {
	Port            string
	ManifestFile    string
	ObjectiveDomain string
	WindowMaxTime   time.Duration
	WindowMaxSize   int
	RebuildInterval time.Duration
	PlotPath        string
	Views           map[string]*config.ViewConfig
}

// stdout receives every rendered result.
var stdout io.Writer = os.Stdout

// ============================================================================
// MAIN ENTRY POINTS - These are the only functions that should be called externally
// ============================================================================

// Static is the unified static analysis function - handles all static analysis cases
func Static(p StaticParams, outputConfig OutputConfig) error {
	// Create config.Config directly from CLI parameters - no intermediate structs
	cfg := createConfigFromCLI(p)

	// Use the same execution path regardless of input source
	return executeStaticAnalysis(cfg, outputConfig)
}

// StaticFromConfig runs static analysis from config file
func StaticFromConfig(cfg *config.Config, outputConfig OutputConfig) error {
	return executeStaticAnalysis(cfg, outputConfig)
}

// Serve builds a session from the static inputs and serves it over HTTP
// until interrupted. With watch the session is rebuilt whenever an input
// file changes.
func Serve(ctx context.Context, cfg *config.Config, watch bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	w, err := host.OpenSelectionFile(cfg.Global.SelectionFile)
	if err != nil {
		return err
	}
	defer w.Close()

	src := host.NewFileHost(cfg.Static.LogFile, cfg.Static.ManifestFile, w)
	opts := analysis.SessionOptionsFromConfig(cfg)

	srv := server.New(src, logger)
	if err := srv.Rebuild(ctx, src, opts); err != nil {
		return fmt.Errorf("building initial session: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Serve.Addr)
	})

	if watch {
		watcher, err := host.NewWatcher([]string{cfg.Static.LogFile, cfg.Static.ManifestFile}, host.DefaultDebounce, logger)
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("watching inputs: %w", err)
		}
		defer watcher.Stop()

		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
		g.Go(func() error {
			srv.WatchAndRebuild(gctx, watcher, src, opts)
			return nil
		})
	}

	return g.Wait()
}

// ============================================================================
// CORE EXECUTION LOGIC - Single unified execution path
// ============================================================================

// executeStaticAnalysis handles all static analysis - CLI or config file, doesn't matter
func executeStaticAnalysis(cfg *config.Config, outputConfig OutputConfig) error {
	// Route to TUI if requested
	if outputConfig.TUI {
		return executeTUI(cfg)
	}

	// Execute the actual analysis
	result, session, err := analysis.StaticFromConfig(cfg)
	if err != nil {
		outputResult(result, outputConfig) // Output with errors
		return err
	}

	// Generate charts if plotPath is provided
	if cfg.Static.PlotPath != "" {
		plotStart := time.Now()
		if err := output.PlotCharts(result, session.Forest, cfg.Static.PlotPath); err != nil {
			result.AddError("plot", fmt.Sprintf("failed to write charts: %v", err), 1)
		} else {
			result.AddWarning("info", fmt.Sprintf("Charts generated in %v at %s", time.Since(plotStart), cfg.Static.PlotPath), 0)
		}
	}

	outputResult(result, outputConfig)
	return nil
}

// executeTUI runs TUI mode - works for both CLI and config file inputs
func executeTUI(cfg *config.Config) error {
	// selections only go to a file, stdout belongs to the terminal UI
	var sink host.Sink
	if path := cfg.Global.SelectionFile; path != "" {
		w, err := host.OpenSelectionFile(path)
		if err != nil {
			return err
		}
		defer w.Close()
		sink = host.NewFileHost(cfg.Static.LogFile, cfg.Static.ManifestFile, w)
	}

	app := tui.NewAppFromConfig(cfg, sink)

	// Run the complete analysis first (like non-TUI mode), then pass results to TUI
	go func() {
		result, session, err := analysis.StaticFromConfig(cfg)
		if err != nil {
			// Show error in TUI instead of silent failure
			app.ShowError(fmt.Sprintf("Analysis failed: %v", err))
			return
		}
		app.SetAnalysisResults(result, session)
	}()

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// ============================================================================
// HELPER FUNCTIONS - Conversion and utility functions
// ============================================================================

// createConfigFromCLI creates a config.Config directly from CLI parameters for static mode
func createConfigFromCLI(p StaticParams) *config.Config {
	cfg := &config.Config{
		Global: &config.GlobalConfig{
			ObjectiveDomain: p.ObjectiveDomain,
			SelectionFile:   p.SelectionFile,
		},
		Static: &config.StaticConfig{
			LogFile:         p.LogFile,
			ManifestFile:    p.ManifestFile,
			PlotPath:        p.PlotPath,
			TimelinePercent: p.TimelinePercent,
		},
		StaticViews: p.Views,
	}
	if cfg.StaticViews == nil {
		cfg.StaticViews = make(map[string]*config.ViewConfig)
	}
	if cfg.Global.ObjectiveDomain == "" {
		cfg.Global.ObjectiveDomain = config.DefaultObjectiveDomain
	}
	if cfg.Static.TimelinePercent == 0 {
		cfg.Static.TimelinePercent = config.DefaultTimelinePercent
	}
	return cfg
}

// createLiveConfigFromCLI creates a config.Config directly from CLI parameters for live mode
func createLiveConfigFromCLI(p LiveParams) *config.Config {
	cfg := createConfigFromCLI(StaticParams{
		ObjectiveDomain: p.ObjectiveDomain,
		Views:           p.Views,
	})
	cfg.Live = &config.LiveConfig{
		Port:            p.Port,
		ManifestFile:    p.ManifestFile,
		WindowMaxSize:   p.WindowMaxSize,
		WindowMaxTime:   p.WindowMaxTime,
		RebuildInterval: p.RebuildInterval,
		PlotPath:        p.PlotPath,
	}
	return cfg
}

// ============================================================================
// OUTPUT FUNCTIONS - Unified output handling
// ============================================================================

// outputJSON outputs in default JSON format (non-compact, non-plain)
func outputJSON(jsonOutput *output.JSONOutput) {
	outputResult(jsonOutput, OutputConfig{Compact: false, Plain: false})
}

// outputResult is the unified output function that handles all output formats
func outputResult(jsonOutput *output.JSONOutput, outputConfig OutputConfig) {
	if outputConfig.Plain {
		outputPlain(stdout, jsonOutput)
		return
	}

	var jsonBytes []byte
	var err error

	if outputConfig.Compact {
		jsonBytes, err = jsonOutput.ToCompactJSON()
	} else {
		jsonBytes, err = jsonOutput.ToJSON()
	}

	if err != nil {
		fmt.Fprintf(stdout, `{"error": "failed to marshal JSON output: %v"}`+"\n", err)
		return
	}
	fmt.Fprintln(stdout, string(jsonBytes))
}

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════"
	lightRule = "───────────────────────────────────────────────────────────────────────────────"
	dotRule   = "..............................................................................."
)

// plainBucketLimit caps the rows printed per aggregation in plain output.
const plainBucketLimit = 20

// outputPlain formats the JSON output as human-readable plain text
func outputPlain(w io.Writer, jsonOutput *output.JSONOutput) {
	fmt.Fprintf(w, "%s\n", heavyRule)
	fmt.Fprintf(w, "                            searchviz Session Results\n")
	fmt.Fprintf(w, "%s\n\n", heavyRule)

	// General Information
	g := jsonOutput.General
	fmt.Fprintf(w, "📊 SESSION OVERVIEW\n")
	fmt.Fprintf(w, "%s\n", lightRule)
	if g.LogFile != "" {
		fmt.Fprintf(w, "Log File:        %s\n", g.LogFile)
		fmt.Fprintf(w, "Manifest:        %s\n", g.ManifestFile)
	}
	fmt.Fprintf(w, "Analysis Type:   %s\n", jsonOutput.Metadata.AnalysisType)
	fmt.Fprintf(w, "Session:         %s\n", jsonOutput.Metadata.SessionID)
	fmt.Fprintf(w, "Generated:       %s\n", jsonOutput.Metadata.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Duration:        %d ms\n", jsonOutput.Metadata.DurationMS)
	fmt.Fprintf(w, "\n")

	// Parsing Performance
	fmt.Fprintf(w, "⚡ PARSING PERFORMANCE\n")
	fmt.Fprintf(w, "%s\n", lightRule)
	fmt.Fprintf(w, "Total Records:   %s\n", output.FormatNumber(g.TotalRecords))
	fmt.Fprintf(w, "Parse Time:      %d ms\n", g.Parsing.DurationMS)
	fmt.Fprintf(w, "Parse Rate:      %s rows/sec\n", output.FormatNumber(int(g.Parsing.RatePerSecond)))
	fmt.Fprintf(w, "Missing IDs:     %s\n", output.FormatNumber(g.Parsing.MissingIDs))
	fmt.Fprintf(w, "Variables:       %d in %d groups (objective: %s)\n", g.Variables, g.VariableGroups, g.ObjectiveDomain)
	fmt.Fprintf(w, "\n")

	// Search forest
	t, f := jsonOutput.Totals, jsonOutput.Forest
	fmt.Fprintf(w, "🌳 SEARCH FOREST\n")
	fmt.Fprintf(w, "%s\n", lightRule)
	fmt.Fprintf(w, "Nodes:           %s (%s failed, %s solved)\n",
		output.FormatNumber(t.Nodes), output.FormatNumber(t.Failures), output.FormatNumber(t.Solutions))
	fmt.Fprintf(w, "Search Time:     %s\n", output.FormatFloat(t.Time, 3))
	fmt.Fprintf(w, "Roots:           %d (%d restarts)\n", f.Roots, f.Restarts)
	fmt.Fprintf(w, "Max Depth:       %d\n", f.MaxDepth)
	fmt.Fprintf(w, "Leaves:          %s\n", output.FormatNumber(f.Leaves))
	fmt.Fprintf(w, "Build Time:      %d ms\n", f.BuildTimeMS)
	fmt.Fprintf(w, "\n")

	// Aggregations
	for i, agg := range jsonOutput.Aggregations {
		keys := agg.Parameters.Key
		if agg.Parameters.SecondKey != "" {
			keys += " × " + agg.Parameters.SecondKey
		}
		fmt.Fprintf(w, "🎯 VIEW: %s (%s, left only: %t)\n", agg.Name, keys, agg.Parameters.LeftOnly)
		fmt.Fprintf(w, "%s\n", dotRule)
		if len(agg.Buckets) == 0 {
			fmt.Fprintf(w, "  No nodes matched\n\n")
			continue
		}
		fmt.Fprintf(w, "  %-24s %10s %10s %8s %8s %9s\n", "Key", "Nodes", "Failed", "%Nodes", "%Time", "AvgDepth")
		for j, b := range agg.Buckets {
			if j == plainBucketLimit {
				fmt.Fprintf(w, "  ... %d more\n", len(agg.Buckets)-plainBucketLimit)
				break
			}
			key := b.Key
			if b.SecondKey != "" {
				key += " / " + b.SecondKey
			}
			fmt.Fprintf(w, "  %-24s %10s %10s %7s%% %7s%% %9s\n",
				key, output.FormatNumber(b.CountNodes), output.FormatNumber(b.FailureCount),
				output.FormatFloat(b.PercentNodes, 2), output.FormatFloat(b.PercentTime, 2),
				output.FormatFloat(b.AverageDepth, 1))
		}
		fmt.Fprintf(w, "\n")

		// Add separator between views
		if i < len(jsonOutput.Aggregations)-1 {
			fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", len(heavyRule)/3))
		}
	}

	if tl := jsonOutput.Timeline; tl != nil && len(tl.Buckets) > 0 {
		fmt.Fprintf(w, "⏱  TIMELINE\n")
		fmt.Fprintf(w, "%s\n", lightRule)
		fmt.Fprintf(w, "Buckets:         %d of %s%% each\n", len(tl.Buckets), output.FormatFloat(tl.Percent, 2))
		nogoods, solutions := 0, 0
		for _, b := range tl.Buckets {
			nogoods += b.Nogoods
			solutions += b.Solutions
		}
		fmt.Fprintf(w, "Nogoods:         %s\n", output.FormatNumber(nogoods))
		fmt.Fprintf(w, "Solutions:       %s\n", output.FormatNumber(solutions))
		fmt.Fprintf(w, "\n")
	}

	if len(jsonOutput.Grids) > 0 {
		fmt.Fprintf(w, "🔲 VARIABLE GRIDS\n")
		fmt.Fprintf(w, "%s\n", lightRule)
		for _, grid := range jsonOutput.Grids {
			fmt.Fprintf(w, "  %-20s %3d x %-3d busiest cell: %s\n", grid.Group, grid.Rows, grid.Cols, output.FormatNumber(grid.Max))
		}
		fmt.Fprintf(w, "\n")
	}

	if ls := jsonOutput.LiveStats; ls != nil {
		fmt.Fprintf(w, "📡 LIVE WINDOW\n")
		fmt.Fprintf(w, "%s\n", lightRule)
		fmt.Fprintf(w, "Window Size:     %s\n", output.FormatNumber(ls.WindowSize))
		fmt.Fprintf(w, "Batch:           %s rows\n", output.FormatNumber(ls.ProcessedBatch))
		fmt.Fprintf(w, "Evicted:         %s\n", output.FormatNumber(ls.Evicted))
		fmt.Fprintf(w, "Reparented:      %s\n", output.FormatNumber(ls.Reparented))
		fmt.Fprintf(w, "Build Time:      %d ms\n", ls.BuildDuration)
		fmt.Fprintf(w, "\n")
	}

	// Warnings and Errors
	if len(jsonOutput.Warnings) > 0 || len(jsonOutput.Errors) > 0 {
		fmt.Fprintf(w, "⚠️  DIAGNOSTICS\n")
		fmt.Fprintf(w, "%s\n", lightRule)

		if len(jsonOutput.Warnings) > 0 {
			fmt.Fprintf(w, "Warnings:\n")
			for _, warning := range jsonOutput.Warnings {
				if warning.Type != "info" { // Skip info messages in plain output
					fmt.Fprintf(w, "  • %s\n", warning.Message)
				}
			}
		}

		if len(jsonOutput.Errors) > 0 {
			fmt.Fprintf(w, "Errors:\n")
			for _, err := range jsonOutput.Errors {
				fmt.Fprintf(w, "  • %s\n", err.Message)
			}
		}
		fmt.Fprintf(w, "\n")
	} else {
		fmt.Fprintf(w, "✅ No issues detected\n\n")
	}

	fmt.Fprintf(w, "%s\n", heavyRule)
}
