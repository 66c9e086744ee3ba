package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when a section leaves a field empty.
const (
	DefaultObjectiveDomain = "cost"
	DefaultTimelinePercent = 1.0
	DefaultWindowMaxSize   = 200000
	DefaultRebuildInterval = 5 * time.Second
	DefaultServeAddr       = ":7428"
	DefaultLivePort        = "5044"
)

// groupingKeys are the record fields an aggregation view may group by.
var groupingKeys = map[string]bool{
	"variable":      true,
	"variableGroup": true,
	"restartId":     true,
}

// viewFields are the only keys accepted inside a view table.
var viewFields = map[string]bool{
	"key":       true,
	"secondKey": true,
	"leftOnly":  true,
}

type GlobalConfig struct {
	ObjectiveDomain string `toml:"objectiveDomain"`
	SelectionFile   string `toml:"selectionFile"`
}

type StaticConfig struct {
	LogFile         string  `toml:"logFile"`
	ManifestFile    string  `toml:"manifestFile"`
	PlotPath        string  `toml:"plotPath"`
	TimelinePercent float64 `toml:"timelinePercent"`
}

// ViewConfig is one aggregation view, e.g. [static.byGroup].
type ViewConfig struct {
	Key       string `toml:"key"`
	SecondKey string `toml:"secondKey"`
	LeftOnly  bool   `toml:"leftOnly"`

	// LeftOnlySet records whether leftOnly was given explicitly.
	LeftOnlySet bool `toml:"-"`
}

type LiveConfig struct {
	Port            string        `toml:"port"`
	ManifestFile    string        `toml:"manifestFile"`
	WindowMaxSize   int           `toml:"windowMaxSize"`
	WindowMaxTime   time.Duration `toml:"windowMaxTime"`
	RebuildInterval time.Duration `toml:"rebuildInterval"`
	PlotPath        string        `toml:"plotPath"`
}

type ServeConfig struct {
	Addr string `toml:"addr"`
}

type Config struct {
	Global      *GlobalConfig          `toml:"global"`
	Static      *StaticConfig          `toml:"static"`
	Live        *LiveConfig            `toml:"live"`
	Serve       *ServeConfig           `toml:"serve"`
	StaticViews map[string]*ViewConfig `toml:",remain"`
}

func LoadConfig(configPath string) (*Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(string(configData))
}

// Parse decodes TOML text into a Config with defaults applied.
func Parse(data string) (*Config, error) {
	var rawConfig map[string]any
	if _, err := toml.Decode(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config := &Config{
		StaticViews: make(map[string]*ViewConfig),
	}

	for key, value := range rawConfig {
		section, ok := value.(map[string]any)
		if !ok {
			continue
		}
		switch key {
		case "global":
			config.Global = parseGlobalConfig(section)
		case "static":
			static, err := parseStaticConfig(section)
			if err != nil {
				return nil, err
			}
			config.Static = static
			for subKey, subValue := range section {
				viewMap, ok := subValue.(map[string]any)
				if !ok {
					continue
				}
				view, err := parseViewConfig(viewMap)
				if err != nil {
					return nil, fmt.Errorf("parsing view config %q: %w", subKey, err)
				}
				config.StaticViews[subKey] = view
			}
		case "live":
			live, err := parseLiveConfig(section)
			if err != nil {
				return nil, err
			}
			config.Live = live
		case "serve":
			config.Serve = parseServeConfig(section)
		}
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Global == nil {
		c.Global = &GlobalConfig{}
	}
	if c.Global.ObjectiveDomain == "" {
		c.Global.ObjectiveDomain = DefaultObjectiveDomain
	}
	if c.Static == nil {
		c.Static = &StaticConfig{}
	}
	if c.Static.TimelinePercent == 0 {
		c.Static.TimelinePercent = DefaultTimelinePercent
	}
	if c.Live == nil {
		c.Live = &LiveConfig{}
	}
	if c.Live.Port == "" {
		c.Live.Port = DefaultLivePort
	}
	if c.Live.WindowMaxSize == 0 {
		c.Live.WindowMaxSize = DefaultWindowMaxSize
	}
	if c.Live.RebuildInterval == 0 {
		c.Live.RebuildInterval = DefaultRebuildInterval
	}
	if c.Serve == nil {
		c.Serve = &ServeConfig{}
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultServeAddr
	}
	for _, view := range c.StaticViews {
		if !view.LeftOnlySet {
			view.LeftOnly = view.SecondKey == ""
		}
	}
}

func parseGlobalConfig(m map[string]any) *GlobalConfig {
	config := &GlobalConfig{}
	if v, ok := m["objectiveDomain"].(string); ok {
		config.ObjectiveDomain = v
	}
	if v, ok := m["selectionFile"].(string); ok {
		config.SelectionFile = v
	}
	return config
}

func parseStaticConfig(m map[string]any) (*StaticConfig, error) {
	config := &StaticConfig{}
	if v, ok := m["logFile"].(string); ok {
		config.LogFile = v
	}
	if v, ok := m["manifestFile"].(string); ok {
		config.ManifestFile = v
	}
	if v, ok := m["plotPath"].(string); ok {
		config.PlotPath = v
	}
	if v, ok := m["timelinePercent"]; ok {
		f, ok := toFloat(v)
		if !ok || f <= 0 || f > 100 {
			return nil, fmt.Errorf("invalid timelinePercent %v: must be a number in (0, 100]", v)
		}
		config.TimelinePercent = f
	}
	return config, nil
}

func parseViewConfig(m map[string]any) (*ViewConfig, error) {
	for field := range m {
		if !viewFields[field] {
			return nil, fmt.Errorf("unknown field %q", field)
		}
	}
	config := &ViewConfig{}
	if v, ok := m["key"].(string); ok {
		config.Key = v
	}
	if v, ok := m["secondKey"].(string); ok {
		config.SecondKey = v
	}
	if v, ok := m["leftOnly"].(bool); ok {
		config.LeftOnly = v
		config.LeftOnlySet = true
	}
	if !groupingKeys[config.Key] {
		return nil, fmt.Errorf("invalid key %q: must be one of %v", config.Key, GroupingKeys())
	}
	if config.SecondKey != "" {
		if !groupingKeys[config.SecondKey] {
			return nil, fmt.Errorf("invalid secondKey %q: must be one of %v", config.SecondKey, GroupingKeys())
		}
		if config.SecondKey == config.Key {
			return nil, fmt.Errorf("secondKey %q repeats key", config.SecondKey)
		}
	}
	return config, nil
}

func parseLiveConfig(m map[string]any) (*LiveConfig, error) {
	config := &LiveConfig{}
	if v, ok := m["port"].(string); ok {
		config.Port = v
	}
	if v, ok := m["manifestFile"].(string); ok {
		config.ManifestFile = v
	}
	if v, ok := m["plotPath"].(string); ok {
		config.PlotPath = v
	}
	if v, ok := m["windowMaxSize"].(int64); ok {
		if v < 0 {
			return nil, fmt.Errorf("invalid windowMaxSize %d: must not be negative", v)
		}
		config.WindowMaxSize = int(v)
	}
	if v, ok := m["windowMaxTime"].(string); ok {
		duration, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid windowMaxTime %q: %w", v, err)
		}
		config.WindowMaxTime = duration
	}
	if v, ok := m["rebuildInterval"].(string); ok {
		duration, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid rebuildInterval %q: %w", v, err)
		}
		if duration <= 0 {
			return nil, fmt.Errorf("invalid rebuildInterval %q: must be positive", v)
		}
		config.RebuildInterval = duration
	}
	return config, nil
}

func parseServeConfig(m map[string]any) *ServeConfig {
	config := &ServeConfig{}
	if v, ok := m["addr"].(string); ok {
		config.Addr = v
	}
	return config
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// GroupingKeys returns the accepted view keys in sorted order.
func GroupingKeys() []string {
	keys := make([]string, 0, len(groupingKeys))
	for k := range groupingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ViewNames returns the configured view names in sorted order.
func (c *Config) ViewNames() []string {
	names := make([]string, 0, len(c.StaticViews))
	for name := range c.StaticViews {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) ValidateStatic() error {
	if c.Static == nil {
		return fmt.Errorf("static configuration section is required")
	}

	if c.Static.LogFile == "" {
		return fmt.Errorf("logFile is required in static configuration")
	}

	if c.Static.ManifestFile == "" {
		return fmt.Errorf("manifestFile is required in static configuration")
	}

	if _, err := os.Stat(c.Static.LogFile); os.IsNotExist(err) {
		return fmt.Errorf("logfile does not exist: %s", c.Static.LogFile)
	}

	if _, err := os.Stat(c.Static.ManifestFile); os.IsNotExist(err) {
		return fmt.Errorf("manifest file does not exist: %s", c.Static.ManifestFile)
	}

	// PlotPath is optional - no validation needed if empty

	return nil
}

func (c *Config) ValidateLive() error {
	if c.Live == nil {
		return fmt.Errorf("live configuration section is required")
	}

	if c.Live.Port == "" {
		return fmt.Errorf("port is required in live configuration")
	}

	if c.Live.ManifestFile == "" {
		return fmt.Errorf("manifestFile is required in live configuration")
	}

	if _, err := os.Stat(c.Live.ManifestFile); os.IsNotExist(err) {
		return fmt.Errorf("manifest file does not exist: %s", c.Live.ManifestFile)
	}

	if c.Live.WindowMaxSize <= 0 && c.Live.WindowMaxTime <= 0 {
		return fmt.Errorf("live window needs windowMaxSize or windowMaxTime")
	}

	return nil
}

// ValidateServe checks the serve section. Serve reads its inputs from the
// static section.
func (c *Config) ValidateServe() error {
	if c.Serve == nil || c.Serve.Addr == "" {
		return fmt.Errorf("addr is required in serve configuration")
	}
	return c.ValidateStatic()
}
