package ingestor

import (
	"math"
	"strconv"

	"github.com/ChristianF88/searchviz/variable"
)

// Missing marks an integer field that was absent or not numeric.
const Missing int64 = math.MinInt64

// RootID is the id of the synthetic root appended to every search log.
const RootID int64 = -1

// Status is the solver's verdict on a search node.
type Status int8

const (
	StatusMalformed    Status = -1
	StatusSolved       Status = 0
	StatusFailed       Status = 1
	StatusBranch       Status = 2
	StatusUndetermined Status = 3
	StatusStop         Status = 4
	StatusUnstop       Status = 5
	StatusSkipped      Status = 6
	StatusMerging      Status = 7
)

func (s Status) String() string {
	switch s {
	case StatusSolved:
		return "solved"
	case StatusFailed:
		return "failed"
	case StatusBranch:
		return "branch"
	case StatusUndetermined:
		return "undetermined"
	case StatusStop:
		return "stop"
	case StatusUnstop:
		return "unstop"
	case StatusSkipped:
		return "skipped"
	case StatusMerging:
		return "merging"
	default:
		return "malformed"
	}
}

// ParseStatus converts the numeric status column.
func ParseStatus(s string) Status {
	n, err := strconv.Atoi(s)
	if err != nil || n < int(StatusSolved) || n > int(StatusMerging) {
		return StatusMalformed
	}
	return Status(n)
}

// Bound is the objective domain known at a node.
type Bound struct {
	Min   float64 `json:"min"`
	Range float64 `json:"range"`
}

// Record is one node of the search tree. Fields below the blank line are
// derived by the tree builder.
type Record struct {
	ID                    int64
	GID                   int64
	ParentID              int64
	Status                Status
	Alternative           int64
	DecisionLevel         float64
	Depth                 float64
	Label                 string
	SubtreeDepth          float64
	SubtreeSolutions      float64
	SubtreeSize           float64
	NogoodStringLength    float64
	NogoodString          string
	NogoodLength          float64
	NogoodNumberVariables float64
	NogoodBLD             float64
	UsesAssumptions       bool
	BackjumpDistance      float64
	BackjumpDestination   float64
	Timestamp             float64
	SolutionString        string
	Solution              *Solution
	Var                   variable.Ref

	VisID         int
	Root          bool
	Reparented    bool
	TimeTaken     float64
	ObjDomain     *Bound
	Children      []*Record
	FutureNogoods []int64
	RestartCount  int
	RestartID     int
}

// NewRecord returns a record with every optional field marked missing.
func NewRecord() *Record {
	nan := math.NaN()
	return &Record{
		ID:                    Missing,
		GID:                   Missing,
		ParentID:              Missing,
		Status:                StatusMalformed,
		Alternative:           Missing,
		DecisionLevel:         nan,
		Depth:                 nan,
		SubtreeDepth:          nan,
		SubtreeSolutions:      nan,
		SubtreeSize:           nan,
		NogoodStringLength:    nan,
		NogoodLength:          nan,
		NogoodNumberVariables: nan,
		NogoodBLD:             nan,
		BackjumpDistance:      nan,
		BackjumpDestination:   nan,
		Timestamp:             nan,
		Var:                   variable.Ref{Variable: variable.NA, Group: variable.NA},
	}
}

// NewSyntheticRoot returns the virtual root that sits above the first restart.
// Its parent id is chosen so that it never resolves.
func NewSyntheticRoot(rowCount int) *Record {
	r := NewRecord()
	r.ID = RootID
	r.GID = RootID
	r.ParentID = -2 * int64(rowCount)
	r.VisID = 0
	r.Root = true
	r.TimeTaken = 0
	r.RestartID = 0
	return r
}

// SelectionID is the id reported to the host when the node is selected.
func (r *Record) SelectionID() int64 {
	if r.GID != Missing {
		return r.GID
	}
	return r.ID
}

// IsLeft reports whether the node is the leftmost branch of its parent.
func (r *Record) IsLeft() bool {
	return r.Alternative == 0
}

// IsLeaf reports whether the node has no children in the built forest.
func (r *Record) IsLeaf() bool {
	return len(r.Children) == 0
}

// HasNogoods reports whether the solution payload lists nogoods.
func (r *Record) HasNogoods() bool {
	return r.Solution != nil && r.Solution.HasNogoods
}
