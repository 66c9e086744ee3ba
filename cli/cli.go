package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ChristianF88/searchviz/analysis"
	"github.com/ChristianF88/searchviz/config"
	"github.com/ChristianF88/searchviz/version"
	cli "github.com/urfave/cli/v2"
)

// parseDate attempts to parse the build date
func parseDate(d string) time.Time {
	t, err := time.Parse(time.RFC3339, d)
	if err != nil {
		return time.Now()
	}
	return t
}

// Shared flag definitions to eliminate duplication
var (
	// Configuration flags
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to configuration file (mutually exclusive with other flags)",
	}

	// Input flags
	logfileFlag = &cli.StringFlag{
		Name:  "logfile",
		Usage: "Path to the search log CSV",
	}
	manifestFlag = &cli.StringFlag{
		Name:  "manifest",
		Usage: "Path to the variable manifest ('ints;bools')",
	}
	objectiveDomainFlag = &cli.StringFlag{
		Name:  "objectiveDomain",
		Usage: "Solution field holding the objective bounds",
		Value: config.DefaultObjectiveDomain,
	}
	selectionFileFlag = &cli.StringFlag{
		Name:  "selectionFile",
		Usage: "Append selected node ids as JSON lines to this file (default: stdout)",
	}

	// Output flags
	plotPathFlag = &cli.StringFlag{
		Name:  "plotPath",
		Usage: "Path where to save the chart page (e.g., '/path/to/charts.html'). If not provided, no plot will be generated.",
	}
	timelinePercentFlag = &cli.Float64Flag{
		Name:  "timelinePercent",
		Usage: "Timeline bucket width in percent of all nodes",
		Value: config.DefaultTimelinePercent,
	}
	viewFlag = &cli.StringSliceFlag{
		Name:  "view",
		Usage: "Aggregation view name=key[,secondKey] (multiple can be passed); keys: variable, variableGroup, restartId",
	}
	compactFlag = &cli.BoolFlag{
		Name:  "compact",
		Usage: "Output compact JSON (no pretty printing)",
		Value: false,
	}
	plainFlag = &cli.BoolFlag{
		Name:  "plain",
		Usage: "Output plain text format for easy readability",
		Value: false,
	}
	tuiFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Launch TUI (Terminal User Interface) mode",
		Value: false,
	}

	// Live-specific flags
	portFlag = &cli.StringFlag{
		Name:  "port",
		Usage: "Port to receive Beats events on",
		Value: config.DefaultLivePort,
	}
	windowMaxTimeFlag = &cli.DurationFlag{
		Name:  "windowMaxTime",
		Usage: "Maximum age of a node in the live window (0 disables)",
	}
	windowMaxSizeFlag = &cli.IntFlag{
		Name:  "windowMaxSize",
		Usage: "Maximum number of nodes in the live window",
		Value: config.DefaultWindowMaxSize,
	}
	rebuildIntervalFlag = &cli.DurationFlag{
		Name:  "rebuildInterval",
		Usage: "How often the live session is rebuilt",
		Value: config.DefaultRebuildInterval,
	}

	// Serve-specific flags
	addrFlag = &cli.StringFlag{
		Name:  "addr",
		Usage: "HTTP listen address",
		Value: config.DefaultServeAddr,
	}
	watchFlag = &cli.BoolFlag{
		Name:  "watch",
		Usage: "Rebuild the session when the log or manifest changes",
		Value: false,
	}
)

// Shared validation functions
func validateConfigModeFlags(c *cli.Context, allowedFlags []string) error {
	// Create a map for quick lookup of allowed flags
	allowed := make(map[string]bool)
	for _, flag := range allowedFlags {
		allowed[flag] = true
	}

	// Check all possible flags
	flagsToCheck := []string{
		"logfile", "manifest", "objectiveDomain", "selectionFile", "plotPath",
		"timelinePercent", "view", "compact", "plain", "tui", "port",
		"windowMaxTime", "windowMaxSize", "rebuildInterval", "addr", "watch",
	}

	for _, flag := range flagsToCheck {
		if c.IsSet(flag) && !allowed[flag] {
			return fmt.Errorf("when using --config, only %v flags are allowed", allowedFlags)
		}
	}
	return nil
}

func validatePlotPath(plotPath string) error {
	if plotPath != "" {
		plotDir := filepath.Dir(plotPath)
		if plotDir == "." {
			plotDir, _ = os.Getwd()
		}
		if _, err := os.Stat(plotDir); os.IsNotExist(err) {
			return fmt.Errorf("plot directory does not exist: %s", plotDir)
		}
	}
	return nil
}

func validateFileExists(what, path string) error {
	if path == "" {
		return fmt.Errorf("%s is required when not using --config", what)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", what, path)
	}
	return nil
}

func validateTimelinePercent(p float64) error {
	if !(p > 0 && p <= 100) {
		return fmt.Errorf("timelinePercent must be in (0, 100], got %s", strconv.FormatFloat(p, 'g', -1, 64))
	}
	return nil
}

// parseViews parses name=key[,secondKey] view definitions.
func parseViews(defs []string) (map[string]*config.ViewConfig, error) {
	views := make(map[string]*config.ViewConfig, len(defs))
	for _, def := range defs {
		name, keys, ok := strings.Cut(def, "=")
		if !ok || name == "" || keys == "" {
			return nil, fmt.Errorf("invalid view %q: expected name=key[,secondKey]", def)
		}
		key, second, _ := strings.Cut(keys, ",")
		g := analysis.Grouping{Key: key, SecondKey: second}
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("invalid view %q: %w", def, err)
		}
		if _, dup := views[name]; dup {
			return nil, fmt.Errorf("view %q defined twice", name)
		}
		views[name] = &config.ViewConfig{Key: key, SecondKey: second, LeftOnly: second == ""}
	}
	return views, nil
}

// Command handler functions to reduce deep nesting

// handleStaticCommand processes the static command with proper separation of concerns
func handleStaticCommand(c *cli.Context) error {
	configPath := c.String("config")
	if configPath != "" {
		return handleStaticConfigMode(c, configPath)
	}
	return handleStaticFlagsMode(c)
}

// handleStaticConfigMode handles static command when using config file
func handleStaticConfigMode(c *cli.Context, configPath string) error {
	// Validate only allowed flags in config mode
	if err := validateConfigModeFlags(c, []string{"tui", "compact", "plain"}); err != nil {
		return err
	}

	// Load and validate config
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateStatic(); err != nil {
		return fmt.Errorf("invalid static configuration: %w", err)
	}

	// Validate plot path if provided
	if err := validatePlotPath(cfg.Static.PlotPath); err != nil {
		return err
	}

	return StaticFromConfig(cfg, OutputConfig{
		Compact: c.Bool("compact"),
		Plain:   c.Bool("plain"),
		TUI:     c.Bool("tui"),
	})
}

// handleStaticFlagsMode handles static command when using CLI flags only
func handleStaticFlagsMode(c *cli.Context) error {
	if err := validateFileExists("logfile", c.String("logfile")); err != nil {
		return err
	}
	if err := validateFileExists("manifest", c.String("manifest")); err != nil {
		return err
	}
	if err := validateTimelinePercent(c.Float64("timelinePercent")); err != nil {
		return err
	}
	if err := validatePlotPath(c.String("plotPath")); err != nil {
		return err
	}
	views, err := parseViews(c.StringSlice("view"))
	if err != nil {
		return err
	}

	// Use unified static interface
	return Static(StaticParams{
		LogFile:         c.String("logfile"),
		ManifestFile:    c.String("manifest"),
		ObjectiveDomain: c.String("objectiveDomain"),
		SelectionFile:   c.String("selectionFile"),
		PlotPath:        c.String("plotPath"),
		TimelinePercent: c.Float64("timelinePercent"),
		Views:           views,
	}, OutputConfig{
		Compact: c.Bool("compact"),
		Plain:   c.Bool("plain"),
		TUI:     c.Bool("tui"),
	})
}

// handleLiveCommand processes the live command with proper separation of concerns
func handleLiveCommand(c *cli.Context) error {
	configPath := c.String("config")
	if configPath != "" {
		return handleLiveConfigMode(c, configPath)
	}
	return handleLiveFlagsMode(c)
}

// handleLiveConfigMode handles live command when using config file
func handleLiveConfigMode(c *cli.Context, configPath string) error {
	if err := validateConfigModeFlags(c, []string{"compact", "plain"}); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateLive(); err != nil {
		return fmt.Errorf("invalid live configuration: %w", err)
	}
	if err := validatePlotPath(cfg.Live.PlotPath); err != nil {
		return err
	}

	return LiveFromConfig(c.Context, cfg, OutputConfig{Compact: c.Bool("compact"), Plain: c.Bool("plain")})
}

// handleLiveFlagsMode handles live command when using CLI flags only
func handleLiveFlagsMode(c *cli.Context) error {
	if err := validateFileExists("manifest", c.String("manifest")); err != nil {
		return err
	}
	if c.Int("windowMaxSize") <= 0 && c.Duration("windowMaxTime") <= 0 {
		return fmt.Errorf("live window needs windowMaxSize or windowMaxTime")
	}
	if c.Duration("rebuildInterval") <= 0 {
		return fmt.Errorf("rebuildInterval must be positive")
	}
	if err := validatePlotPath(c.String("plotPath")); err != nil {
		return err
	}
	views, err := parseViews(c.StringSlice("view"))
	if err != nil {
		return err
	}

	cfg := createLiveConfigFromCLI(LiveParams{
		Port:            c.String("port"),
		ManifestFile:    c.String("manifest"),
		ObjectiveDomain: c.String("objectiveDomain"),
		WindowMaxTime:   c.Duration("windowMaxTime"),
		WindowMaxSize:   c.Int("windowMaxSize"),
		RebuildInterval: c.Duration("rebuildInterval"),
		PlotPath:        c.String("plotPath"),
		Views:           views,
	})
	return LiveFromConfig(c.Context, cfg, OutputConfig{Compact: c.Bool("compact"), Plain: c.Bool("plain")})
}

// handleServeCommand processes the serve command
func handleServeCommand(c *cli.Context) error {
	configPath := c.String("config")
	if configPath != "" {
		if err := validateConfigModeFlags(c, []string{"watch"}); err != nil {
			return err
		}
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.ValidateServe(); err != nil {
			return fmt.Errorf("invalid serve configuration: %w", err)
		}
		return Serve(c.Context, cfg, c.Bool("watch"))
	}

	if err := validateFileExists("logfile", c.String("logfile")); err != nil {
		return err
	}
	if err := validateFileExists("manifest", c.String("manifest")); err != nil {
		return err
	}
	views, err := parseViews(c.StringSlice("view"))
	if err != nil {
		return err
	}

	cfg := createConfigFromCLI(StaticParams{
		LogFile:         c.String("logfile"),
		ManifestFile:    c.String("manifest"),
		ObjectiveDomain: c.String("objectiveDomain"),
		SelectionFile:   c.String("selectionFile"),
		TimelinePercent: config.DefaultTimelinePercent,
		Views:           views,
	})
	cfg.Serve = &config.ServeConfig{Addr: c.String("addr")}
	return Serve(c.Context, cfg, c.Bool("watch"))
}

var App = &cli.App{
	Name:     "searchviz",
	Usage:    "Explore constraint solver search trees from logs, live streams or over HTTP",
	Version:  version.Version,
	Compiled: parseDate(version.Date),
	// --view values carry their own comma
	DisableSliceFlagSeparator: true,
	Commands: []*cli.Command{
		{
			Name:  "live",
			Usage: "Build sessions from search log rows streamed over Beats",
			Flags: []cli.Flag{
				// Configuration
				configFlag,
				// Live-specific flags
				portFlag,
				manifestFlag,
				windowMaxTimeFlag,
				windowMaxSizeFlag,
				rebuildIntervalFlag,
				objectiveDomainFlag,
				viewFlag,
				// Output flags
				plotPathFlag,
				compactFlag,
				plainFlag,
			},
			Action: handleLiveCommand,
		},
		{
			Name:  "static",
			Usage: "Build a session from a search log file",
			Flags: []cli.Flag{
				// Configuration
				configFlag,
				// Static-specific flags
				logfileFlag,
				manifestFlag,
				objectiveDomainFlag,
				timelinePercentFlag,
				viewFlag,
				selectionFileFlag,
				tuiFlag,
				// Output flags
				plotPathFlag,
				compactFlag,
				plainFlag,
			},
			Action: handleStaticCommand,
		},
		{
			Name:  "serve",
			Usage: "Serve a session over HTTP for browser renderers",
			Flags: []cli.Flag{
				configFlag,
				logfileFlag,
				manifestFlag,
				objectiveDomainFlag,
				viewFlag,
				selectionFileFlag,
				addrFlag,
				watchFlag,
			},
			Action: handleServeCommand,
		},
	},
}
