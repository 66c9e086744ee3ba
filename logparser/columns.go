package logparser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ChristianF88/searchviz/ingestor"
)

// Column names of the search log export.
const (
	ColID                    = "id"
	ColGID                   = "gid"
	ColParentID              = "parentId"
	ColStatus                = "status"
	ColAlternative           = "alternative"
	ColDecisionLevel         = "decisionLevel"
	ColDepth                 = "depth"
	ColLabel                 = "label"
	ColSubtreeDepth          = "subtreeDepth"
	ColSubtreeSolutions      = "subtreeSolutions"
	ColSubtreeSize           = "subtreeSize"
	ColNogoodStringLength    = "nogoodStringLength"
	ColNogoodString          = "nogoodString"
	ColNogoodLength          = "nogoodLength"
	ColNogoodNumberVariables = "nogoodNumberVariables"
	ColNogoodBLD             = "nogoodBLD"
	ColUsesAssumptions       = "usesAssumptions"
	ColBackjumpDistance      = "backjumpDistance"
	ColBackjumpDestination   = "backjumpDestination"
	ColTimestamp             = "timestamp"
	ColSolutionString        = "solutionString"
)

// DefaultHeader is the column order written by the solver profiler. It is
// used for headerless input such as rows streamed in live mode.
var DefaultHeader = []string{
	ColID, ColParentID, ColStatus, ColAlternative, ColDecisionLevel, ColDepth,
	ColLabel, ColSubtreeDepth, ColSubtreeSolutions, ColSubtreeSize,
	ColNogoodStringLength, ColNogoodString, ColNogoodLength, ColNogoodNumberVariables,
	ColBackjumpDistance, ColTimestamp, ColSolutionString,
}

type setter func(r *ingestor.Record, v string)

var setters = map[string]setter{
	ColID:                    func(r *ingestor.Record, v string) { r.ID = parseInt(v) },
	ColGID:                   func(r *ingestor.Record, v string) { r.GID = parseInt(v) },
	ColParentID:              func(r *ingestor.Record, v string) { r.ParentID = parseInt(v) },
	ColStatus:                func(r *ingestor.Record, v string) { r.Status = ingestor.ParseStatus(strings.TrimSpace(v)) },
	ColAlternative:           func(r *ingestor.Record, v string) { r.Alternative = parseInt(v) },
	ColDecisionLevel:         func(r *ingestor.Record, v string) { r.DecisionLevel = parseFloat(v) },
	ColDepth:                 func(r *ingestor.Record, v string) { r.Depth = parseFloat(v) },
	ColLabel:                 func(r *ingestor.Record, v string) { r.Label = v },
	ColSubtreeDepth:          func(r *ingestor.Record, v string) { r.SubtreeDepth = parseFloat(v) },
	ColSubtreeSolutions:      func(r *ingestor.Record, v string) { r.SubtreeSolutions = parseFloat(v) },
	ColSubtreeSize:           func(r *ingestor.Record, v string) { r.SubtreeSize = parseFloat(v) },
	ColNogoodStringLength:    func(r *ingestor.Record, v string) { r.NogoodStringLength = parseFloat(v) },
	ColNogoodString:          func(r *ingestor.Record, v string) { r.NogoodString = v },
	ColNogoodLength:          func(r *ingestor.Record, v string) { r.NogoodLength = parseFloat(v) },
	ColNogoodNumberVariables: func(r *ingestor.Record, v string) { r.NogoodNumberVariables = parseFloat(v) },
	ColNogoodBLD:             func(r *ingestor.Record, v string) { r.NogoodBLD = parseFloat(v) },
	ColUsesAssumptions:       func(r *ingestor.Record, v string) { r.UsesAssumptions = parseBool(v) },
	ColBackjumpDistance:      func(r *ingestor.Record, v string) { r.BackjumpDistance = parseFloat(v) },
	ColBackjumpDestination:   func(r *ingestor.Record, v string) { r.BackjumpDestination = parseFloat(v) },
	ColTimestamp:             func(r *ingestor.Record, v string) { r.Timestamp = parseFloat(v) },
	ColSolutionString:        func(r *ingestor.Record, v string) { r.SolutionString = v },
}

// CompiledHeader maps CSV positions to record fields.
type CompiledHeader struct {
	columns []string
	setters []setter
}

// CompileHeader prepares a header row for fast row coercion. Unknown
// columns are ignored. The id column is mandatory.
func CompileHeader(columns []string) (*CompiledHeader, error) {
	h := &CompiledHeader{
		columns: make([]string, len(columns)),
		setters: make([]setter, len(columns)),
	}
	hasID := false
	for i, col := range columns {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		h.columns[i] = col
		h.setters[i] = setters[col]
		if col == ColID {
			hasID = true
		}
	}
	if !hasID {
		return nil, fmt.Errorf("header has no %q column: %v", ColID, columns)
	}
	return h, nil
}

// Columns returns the header names in input order.
func (h *CompiledHeader) Columns() []string {
	return h.columns
}

// Coerce converts one CSV row. Cells that are absent or not numeric are
// carried as missing values.
func (h *CompiledHeader) Coerce(fields []string) *ingestor.Record {
	r := ingestor.NewRecord()
	for i, v := range fields {
		if i >= len(h.setters) {
			break
		}
		if set := h.setters[i]; set != nil {
			set(r, v)
		}
	}
	return r
}

// CoerceTypes converts a row keyed by column name.
func CoerceTypes(row map[string]string) *ingestor.Record {
	r := ingestor.NewRecord()
	for col, v := range row {
		if set, ok := setters[col]; ok {
			set(r, v)
		}
	}
	return r
}

func parseInt(s string) int64 {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return ingestor.Missing
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return ingestor.Missing
	}
	return int64(f)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
