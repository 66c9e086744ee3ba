package analysis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ChristianF88/searchviz/host"
	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/logparser"
	"github.com/ChristianF88/searchviz/tree"
	"github.com/ChristianF88/searchviz/variable"
)

// View is a named aggregation. Exactly one of Table and Cross is set.
type View struct {
	Name  string
	Table *Table
	Cross *CrossTable
}

// SessionOptions configures how a session is built.
type SessionOptions struct {
	ObjectiveDomain string
	// Header is the column order of headerless logs; nil reads the header
	// from the first row.
	Header []string
	// Views maps view names to groupings; empty selects DefaultViews.
	Views           map[string]Grouping
	TimelinePercent float64
}

// DefaultViews are the aggregations a session computes when none are
// configured.
func DefaultViews() map[string]Grouping {
	return map[string]Grouping{
		"restarts":            {Key: KeyRestartID, LeftOnly: true},
		"variableGroups":      {Key: KeyVariableGroup, LeftOnly: true},
		"variables":           {Key: KeyVariable, LeftOnly: true},
		"variablesPerRestart": {Key: KeyVariable, SecondKey: KeyRestartID},
	}
}

// Session is one visualization session. It is built once and then only
// read; a changed input means a new session.
type Session struct {
	ID        string
	CreatedAt time.Time

	Records         []*ingestor.Record
	Forest          *tree.Forest
	Totals          Totals
	Catalogue       *variable.Catalogue
	Views           []View
	Timeline        []TimelineBucket
	TimelinePercent float64
	Grids           []*Grid
	Stats           *logparser.Stats
	BuildDuration   time.Duration

	// occupancy tables over all branches, backing the grids
	byVariable *Table
	perRestart *CrossTable
}

// NewSession fetches both inputs from src and builds a session. An invalid
// manifest is returned as a *variable.ConfigError before the log is read.
func NewSession(ctx context.Context, src host.Source, opts SessionOptions) (*Session, error) {
	manifest, err := src.VariableManifest(ctx)
	if err != nil {
		observeFailure()
		return nil, fmt.Errorf("fetching variable manifest: %w", err)
	}
	cat, err := variable.ParseManifest(manifest)
	if err != nil {
		observeFailure()
		return nil, err
	}

	raw, err := src.RawLog(ctx)
	if err != nil {
		observeFailure()
		return nil, fmt.Errorf("fetching search log: %w", err)
	}

	start := time.Now()
	parser, err := logparser.NewParser(opts.Header)
	if err != nil {
		observeFailure()
		return nil, err
	}
	records, stats, err := parser.ParseString(raw)
	if err != nil {
		observeFailure()
		return nil, fmt.Errorf("parsing search log: %w", err)
	}

	s, err := BuildSession(records, cat, stats, opts)
	if err != nil {
		return nil, err
	}
	s.BuildDuration = time.Since(start)
	return s, nil
}

// BuildSession links already parsed records, which must include a synthetic
// root, and computes every aggregation.
func BuildSession(records []*ingestor.Record, cat *variable.Catalogue, stats *logparser.Stats, opts SessionOptions) (*Session, error) {
	start := time.Now()
	views := opts.Views
	if len(views) == 0 {
		views = DefaultViews()
	}
	for name, g := range views {
		if err := g.Validate(); err != nil {
			observeFailure()
			return nil, fmt.Errorf("view %q: %w", name, err)
		}
	}
	if cat == nil {
		cat = &variable.Catalogue{Groups: map[string]*variable.Group{}}
	}
	if stats == nil {
		stats = &logparser.Stats{Rows: len(records)}
	}

	forest := tree.Build(records, tree.Options{ObjectiveDomain: opts.ObjectiveDomain})
	s := &Session{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Records:         forest.Records,
		Forest:          forest,
		Totals:          ComputeTotals(forest.Records),
		Catalogue:       cat,
		TimelinePercent: opts.TimelinePercent,
		Stats:           stats,
	}
	if s.TimelinePercent <= 0 {
		s.TimelinePercent = 1
	}

	names := make([]string, 0, len(views))
	for name := range views {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g := views[name]
		v := View{Name: name}
		if g.SecondKey != "" {
			v.Cross, _ = AggregateCross(s.Records, s.Totals, g)
		} else {
			v.Table, _ = Aggregate(s.Records, s.Totals, g)
		}
		s.Views = append(s.Views, v)
	}

	s.Timeline = Timeline(s.Records, s.Totals, s.TimelinePercent)

	s.byVariable, _ = Aggregate(s.Records, s.Totals, Grouping{Key: KeyVariable})
	s.perRestart, _ = AggregateCross(s.Records, s.Totals, Grouping{Key: KeyVariable, SecondKey: KeyRestartID})
	for _, name := range cat.GroupNames() {
		if cat.Groups[name].Kind != variable.KindArray {
			continue
		}
		grid, err := BuildGrid(cat, name, s.byVariable, s.perRestart, nil)
		if err == nil {
			s.Grids = append(s.Grids, grid)
		}
	}

	s.BuildDuration = time.Since(start)
	observeSession(s)
	return s, nil
}

// View returns the named view.
func (s *Session) View(name string) (View, bool) {
	for _, v := range s.Views {
		if v.Name == name {
			return v, true
		}
	}
	return View{}, false
}

// Aggregate computes an ad hoc single key table over the session.
func (s *Session) Aggregate(g Grouping) (*Table, error) {
	return Aggregate(s.Records, s.Totals, g)
}

// AggregateCross computes an ad hoc two key table over the session.
func (s *Session) AggregateCross(g Grouping) (*CrossTable, error) {
	return AggregateCross(s.Records, s.Totals, g)
}

// Grid returns the occupancy grid of a group, overall or for one restart.
func (s *Session) Grid(group string, restart *int) (*Grid, error) {
	if restart != nil && (*restart < 0 || *restart >= s.Forest.Restarts()) {
		return nil, fmt.Errorf("restart %d out of range [0, %d)", *restart, s.Forest.Restarts())
	}
	return BuildGrid(s.Catalogue, group, s.byVariable, s.perRestart, restart)
}

// GroupSelection returns the selection ids of every node branching on a
// variable of group.
func (s *Session) GroupSelection(group string) []int64 {
	return s.Forest.IDsWhere(func(r *ingestor.Record) bool {
		return r.Var.Group == group
	})
}

// VariableSelection returns the selection ids of every node branching on
// name.
func (s *Session) VariableSelection(name string) []int64 {
	return s.Forest.IDsWhere(func(r *ingestor.Record) bool {
		return r.Var.Variable == name
	})
}

// RestartSelection returns the selection ids of every node in a restart.
func (s *Session) RestartSelection(restart int) []int64 {
	return s.Forest.IDsWhere(func(r *ingestor.Record) bool {
		return r.ID != ingestor.RootID && r.RestartID == restart
	})
}

// BucketSelection returns the selection ids of the nodes counted in one
// bucket of g. second is ignored for single key groupings.
func (s *Session) BucketSelection(g Grouping, key, second string) []int64 {
	var ids []int64
	for _, r := range Select(s.Records, g) {
		if r.SelectionID() == ingestor.Missing {
			continue
		}
		if k, _ := keyOf(r, g.Key); k != key {
			continue
		}
		if g.SecondKey != "" {
			if k, _ := keyOf(r, g.SecondKey); k != second {
				continue
			}
		}
		ids = append(ids, r.SelectionID())
	}
	return ids
}

// ParseRestart parses an optional restart query value.
func ParseRestart(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid restart %q: %w", v, err)
	}
	return &n, nil
}
