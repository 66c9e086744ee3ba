package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ChristianF88/searchviz/analysis"
	"github.com/ChristianF88/searchviz/config"
	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/logparser"
	"github.com/ChristianF88/searchviz/output"
	"github.com/ChristianF88/searchviz/pools"
	"github.com/ChristianF88/searchviz/sliding"
	"github.com/ChristianF88/searchviz/variable"
)

// ============================================================================
// LIVE MODE IMPLEMENTATION
// ============================================================================

// LiveFromConfig receives search log rows over Beats and prints a fresh
// session every rebuild interval until interrupted.
func LiveFromConfig(ctx context.Context, cfg *config.Config, outputConfig OutputConfig) error {
	return executeLiveAnalysis(ctx, cfg, outputConfig)
}

// liveState is the window and everything needed to turn it into a session.
type liveState struct {
	parser    *logparser.Parser
	window    *sliding.SlidingWindow
	catalogue *variable.Catalogue
	opts      analysis.SessionOptions
	plotPath  string

	unreadable  int
	badPayloads int
}

func newLiveState(cfg *config.Config) (*liveState, error) {
	manifest, err := os.ReadFile(cfg.Live.ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	cat, err := variable.ParseManifest(string(manifest))
	if err != nil {
		return nil, err
	}
	parser, err := logparser.NewParser(logparser.DefaultHeader)
	if err != nil {
		return nil, err
	}
	return &liveState{
		parser:    parser,
		window:    sliding.NewSlidingWindow(cfg.Live.WindowMaxTime, cfg.Live.WindowMaxSize),
		catalogue: cat,
		opts:      analysis.SessionOptionsFromConfig(cfg),
		plotPath:  cfg.Live.PlotPath,
	}, nil
}

// ingest parses rows and adds them to the window. Unreadable rows are
// counted and dropped; rows without an id or with a malformed payload are
// kept.
func (s *liveState) ingest(rows []string, now time.Time) int {
	timed := pools.Pools.GetTimedRecordSlice()
	defer func() { pools.Pools.ReturnTimedRecordSlice(timed) }()

	for _, row := range rows {
		rec, err := s.parser.ParseLine(row)
		if rec == nil {
			s.unreadable++
			continue
		}
		if err != nil {
			s.badPayloads++
		}
		timed = append(timed, sliding.TimedRecord{Record: rec, Time: now})
	}
	s.window.Update(timed)
	return len(timed)
}

// rebuild builds a session over the current window.
func (s *liveState) rebuild(loopStart time.Time, batch int) (*output.JSONOutput, *analysis.Session) {
	jsonOutput := output.NewJSONOutput("live", loopStart)

	buildStart := time.Now()
	records, reparented := s.window.Snapshot()
	stats := &logparser.Stats{
		Rows:        len(records) - 1,
		BadPayloads: s.badPayloads,
	}
	for _, rec := range records {
		if rec.ID == ingestor.Missing {
			stats.MissingIDs++
		}
	}
	session, err := analysis.BuildSession(records, s.catalogue, stats, s.opts)
	if err != nil {
		jsonOutput.AddError("session_build", fmt.Sprintf("failed to build session: %v", err), 1)
		jsonOutput.UpdateDuration(loopStart)
		return jsonOutput, nil
	}
	analysis.FillOutput(jsonOutput, session)

	if reparented > 0 {
		jsonOutput.AddWarning("reparented", "nodes whose parent left the window were attached to the root", reparented)
	}
	if s.unreadable > 0 {
		jsonOutput.AddWarning("unreadable_rows", "rows that could not be read as CSV were dropped", s.unreadable)
	}
	if s.plotPath != "" {
		if err := output.PlotCharts(jsonOutput, session.Forest, s.plotPath); err != nil {
			jsonOutput.AddError("plot", fmt.Sprintf("failed to write charts: %v", err), 1)
		}
	}

	jsonOutput.LiveStats = &output.LiveStats{
		WindowSize:     s.window.Len(),
		ProcessedBatch: batch,
		Reparented:     reparented,
		Evicted:        s.window.Evicted(),
		BuildDuration:  time.Since(buildStart).Milliseconds(),
		LoopDuration:   time.Since(loopStart).Milliseconds(),
	}
	jsonOutput.UpdateDuration(loopStart)
	return jsonOutput, session
}

// executeLiveAnalysis runs live mode analysis - works for both CLI and config file inputs
func executeLiveAnalysis(ctx context.Context, cfg *config.Config, outputConfig OutputConfig) error {
	state, err := newLiveState(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ing, err := ingestor.NewTCPIngestor(
		":"+cfg.Live.Port,
		5*time.Second, // read timeout: avoid client disconnects
	)
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}
	if err := ing.Accept(); err != nil {
		return fmt.Errorf("accepting connections: %w", err)
	}

	// Output initial connection status as JSON
	initOutput := output.NewJSONOutput("live", time.Now())
	initOutput.AddWarning("info", fmt.Sprintf("Waiting for Beats events on %s", ing.Addr()), 0)
	outputJSON(initOutput)

	g, gctx := errgroup.WithContext(ctx)

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("stopping live ingest")
		_ = ing.Close()
		return nil
	})

	g.Go(func() error {
		defer cancel()
		ticker := time.NewTicker(cfg.Live.RebuildInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}

			loopStart := time.Now()
			batch, err := ing.ReadBatch()
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				return fmt.Errorf("read error: %w", err)
			}

			if len(batch) == 0 {
				if ing.IsClosed() {
					logger.Info("ingestor closed")
					return nil
				}
				continue
			}

			accepted := state.ingest(batch, loopStart)
			result, session := state.rebuild(loopStart, len(batch))
			stats := ing.Stats()
			if stats.Dropped > 0 {
				result.AddWarning("dropped_events", "Beats events without a usable message were dropped", int(stats.Dropped))
			}
			if session != nil {
				logger.Info("live session rebuilt",
					"session", session.ID,
					"rows", len(batch),
					"accepted", accepted,
					"window", state.window.Len(),
					"events", stats.Events,
					"headers", stats.Headers)
			}
			outputResult(result, outputConfig)
		}
	})

	return g.Wait()
}
