package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ChristianF88/searchviz/config"
	"github.com/ChristianF88/searchviz/host"
	"github.com/ChristianF88/searchviz/output"
	"github.com/ChristianF88/searchviz/variable"
)

// SessionOptionsFromConfig maps the configured views and globals onto
// session options.
func SessionOptionsFromConfig(cfg *config.Config) SessionOptions {
	opts := SessionOptions{}
	if cfg == nil {
		return opts
	}
	if cfg.Global != nil {
		opts.ObjectiveDomain = cfg.Global.ObjectiveDomain
	}
	if cfg.Static != nil {
		opts.TimelinePercent = cfg.Static.TimelinePercent
	}
	if len(cfg.StaticViews) > 0 {
		opts.Views = make(map[string]Grouping, len(cfg.StaticViews))
		for name, v := range cfg.StaticViews {
			if v == nil {
				continue
			}
			opts.Views[name] = Grouping{Key: v.Key, SecondKey: v.SecondKey, LeftOnly: v.LeftOnly}
		}
	}
	return opts
}

// StaticFromConfig builds a session from the configured files and returns
// the result together with the session.
func StaticFromConfig(cfg *config.Config) (*output.JSONOutput, *Session, error) {
	analysisStart := time.Now()
	jsonOutput := output.NewJSONOutput("static", analysisStart)

	// Validate config
	if cfg == nil {
		jsonOutput.AddError("config_error", "configuration is nil", 1)
		return jsonOutput, nil, fmt.Errorf("configuration is nil")
	}

	if cfg.Static == nil {
		jsonOutput.AddError("config_error", "static configuration section is missing", 1)
		return jsonOutput, nil, fmt.Errorf("static configuration section is missing")
	}

	if len(cfg.StaticViews) == 0 {
		jsonOutput.AddWarning("config_warning", "no aggregation views configured, using the default views", 1)
	}

	jsonOutput.General.LogFile = cfg.Static.LogFile
	jsonOutput.General.ManifestFile = cfg.Static.ManifestFile

	src := host.NewFileHost(cfg.Static.LogFile, cfg.Static.ManifestFile, nil)
	session, err := NewSession(context.Background(), src, SessionOptionsFromConfig(cfg))
	if err != nil {
		var cfgErr *variable.ConfigError
		if errors.As(err, &cfgErr) {
			jsonOutput.AddError("invalid_manifest", err.Error(), 1)
		} else {
			jsonOutput.AddError("parse_file", fmt.Sprintf("failed to build session from %s: %v", cfg.Static.LogFile, err), 1)
		}
		return jsonOutput, nil, err
	}

	FillOutput(jsonOutput, session)
	jsonOutput.UpdateDuration(analysisStart)
	return jsonOutput, session, nil
}

// FillOutput copies a session's results into jsonOutput and reports every
// tolerated input problem as a warning.
func FillOutput(jsonOutput *output.JSONOutput, s *Session) {
	jsonOutput.Metadata.SessionID = s.ID

	jsonOutput.General.ObjectiveDomain = s.Forest.ObjectiveDomain()
	jsonOutput.General.TotalRecords = len(s.Records)
	jsonOutput.General.Variables = len(s.Catalogue.Variables)
	jsonOutput.General.VariableGroups = len(s.Catalogue.Groups)
	if s.Stats != nil {
		jsonOutput.General.Parsing = output.Parsing{
			DurationMS:  s.Stats.Duration.Milliseconds(),
			Rows:        s.Stats.Rows,
			MissingIDs:  s.Stats.MissingIDs,
			BadPayloads: s.Stats.BadPayloads,
		}
		if secs := s.Stats.Duration.Seconds(); secs > 0 {
			jsonOutput.General.Parsing.RatePerSecond = int64(float64(s.Stats.Rows) / secs)
		}
	}

	jsonOutput.Totals = output.Totals{
		Nodes:     s.Totals.Nodes,
		Time:      s.Totals.Time,
		Failures:  s.Totals.Failures,
		Solutions: s.Totals.Solutions,
	}

	jsonOutput.Forest = output.ForestSummary{
		Roots:           len(s.Forest.Roots),
		Restarts:        s.Forest.Restarts(),
		MaxDepth:        s.Forest.MaxDepth(),
		Leaves:          len(s.Forest.Leaves()),
		Dangling:        s.Forest.Dangling,
		DanglingNogoods: s.Forest.DanglingNogoods,
		Duplicates:      s.Forest.Duplicates,
		BuildTimeMS:     s.BuildDuration.Milliseconds(),
	}

	jsonOutput.Aggregations = make([]output.Aggregation, 0, len(s.Views))
	for _, v := range s.Views {
		jsonOutput.Aggregations = append(jsonOutput.Aggregations, ViewOutput(v))
	}

	jsonOutput.Timeline = TimelineOutput(s.Timeline, s.TimelinePercent)

	jsonOutput.Grids = make([]output.Grid, 0, len(s.Grids))
	for _, g := range s.Grids {
		jsonOutput.Grids = append(jsonOutput.Grids, GridOutput(g))
	}

	if s.Stats != nil && s.Stats.MissingIDs > 0 {
		jsonOutput.AddWarning("missing_ids", "rows without a numeric id were kept under their parent but cannot be selected", s.Stats.MissingIDs)
	}
	if s.Stats != nil && s.Stats.BadPayloads > 0 {
		jsonOutput.AddWarning("bad_payload", "solution payloads that are not JSON objects were ignored", s.Stats.BadPayloads)
	}
	if s.Forest.Dangling > 0 {
		jsonOutput.AddWarning("dangling_parent", "nodes whose parent id does not resolve were made restart roots", s.Forest.Dangling)
	}
	if s.Forest.DanglingNogoods > 0 {
		jsonOutput.AddWarning("dangling_nogood", "nogood references to unknown node ids were ignored", s.Forest.DanglingNogoods)
	}
	if s.Forest.Duplicates > 0 {
		jsonOutput.AddWarning("duplicate_id", "repeated node ids were linked but only the first is addressable", s.Forest.Duplicates)
	}
	if len(s.Catalogue.Variables) == 0 {
		jsonOutput.AddWarning("empty_manifest", "the variable manifest declares no variables, no grids were built", 1)
	}
}

// ViewOutput converts a view into its output form. Cross tables are
// flattened row by row.
func ViewOutput(v View) output.Aggregation {
	agg := output.Aggregation{Name: v.Name, Buckets: []output.Bucket{}}
	switch {
	case v.Table != nil:
		agg.Parameters = parametersOf(v.Table.Grouping)
		for _, b := range v.Table.Buckets {
			agg.Buckets = append(agg.Buckets, bucketOutput(b))
		}
	case v.Cross != nil:
		agg.Parameters = parametersOf(v.Cross.Grouping)
		for _, outer := range v.Cross.Outer {
			for _, b := range v.Cross.Rows[outer].Buckets {
				ob := bucketOutput(b)
				ob.Key, ob.SecondKey = outer, b.Key
				agg.Buckets = append(agg.Buckets, ob)
			}
		}
	}
	return agg
}

func parametersOf(g Grouping) output.AggregationParameters {
	return output.AggregationParameters{Key: g.Key, SecondKey: g.SecondKey, LeftOnly: g.LeftOnly}
}

func bucketOutput(b Bucket) output.Bucket {
	return output.Bucket{
		Key:                    b.Key,
		CountNodes:             b.CountNodes,
		CountLeftNodes:         b.CountLeftNodes,
		PercentNodes:           b.PercentNodes,
		AverageDepth:           b.AverageDepth,
		AverageElapsed:         b.AverageElapsed,
		SumElapsed:             b.SumElapsed,
		PercentTime:            b.PercentTime,
		FailureCount:           b.FailureCount,
		PercentFailuresOfTotal: b.PercentFailuresOfTotal,
		PercentFailedOfBucket:  b.PercentFailedOfBucket,
	}
}

// TimelineOutput converts timeline buckets into their output form.
func TimelineOutput(buckets []TimelineBucket, percent float64) *output.Timeline {
	tl := &output.Timeline{Percent: percent, Buckets: make([]output.TimelineBucket, len(buckets))}
	for i, b := range buckets {
		tl.Buckets[i] = output.TimelineBucket{
			Index:                  b.Index,
			Count:                  b.Count,
			MedianDecisionLevel:    b.MedianDecisionLevel,
			MinDepth:               b.MinDepth,
			MaxDepth:               b.MaxDepth,
			MedianDepth:            b.MedianDepth,
			MedianNogoodLength:     b.MedianNogoodLength,
			MedianBackjumpDistance: b.MedianBackjumpDistance,
			Nogoods:                b.Nogoods,
			Solutions:              b.Solutions,
			PercentLeftNodes:       b.PercentLeftNodes,
			PercentTime:            b.PercentTime,
			FutureNogoods:          b.FutureNogoods,
		}
	}
	return tl
}

// GridOutput converts a grid into its output form.
func GridOutput(g *Grid) output.Grid {
	og := output.Grid{
		Group:   g.Group,
		Restart: g.Restart,
		Rows:    g.Rows,
		Cols:    g.Cols,
		Max:     g.Max,
		Cells:   make([]output.GridCell, len(g.Cells)),
	}
	for i, c := range g.Cells {
		og.Cells[i] = output.GridCell{
			Row:       c.Row,
			Col:       c.Col,
			Variable:  c.Variable,
			Count:     c.Count,
			CountLeft: c.CountLeft,
			Failures:  c.Failures,
		}
	}
	return og
}
