package analysis

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/variable"
)

// Grouping keys.
const (
	KeyVariable      = "variable"
	KeyVariableGroup = "variableGroup"
	KeyRestartID     = "restartId"
)

// Grouping selects the record field(s) an aggregation groups by.
type Grouping struct {
	Key       string
	SecondKey string
	// LeftOnly restricts the input to nodes with alternative == 0.
	LeftOnly bool
}

// Validate reports unknown keys.
func (g Grouping) Validate() error {
	if !validKey(g.Key) {
		return fmt.Errorf("unknown grouping key %q", g.Key)
	}
	if g.SecondKey != "" {
		if !validKey(g.SecondKey) {
			return fmt.Errorf("unknown grouping key %q", g.SecondKey)
		}
		if g.SecondKey == g.Key {
			return fmt.Errorf("second key %q repeats the first", g.SecondKey)
		}
	}
	return nil
}

func validKey(key string) bool {
	return key == KeyVariable || key == KeyVariableGroup || key == KeyRestartID
}

// keyOf returns the value of key for rec, or false when the record carries
// no usable value for it.
func keyOf(rec *ingestor.Record, key string) (string, bool) {
	switch key {
	case KeyVariable:
		return rec.Var.Variable, rec.Var.Variable != variable.NA
	case KeyVariableGroup:
		return rec.Var.Group, rec.Var.Group != variable.NA
	case KeyRestartID:
		return strconv.Itoa(rec.RestartID), rec.ID != ingestor.RootID
	default:
		return "", false
	}
}

// Select returns the records an aggregation with g counts: every key must be
// defined and, with LeftOnly, the node must be a left branch.
func Select(records []*ingestor.Record, g Grouping) []*ingestor.Record {
	var out []*ingestor.Record
	for _, rec := range records {
		if g.LeftOnly && !rec.IsLeft() {
			continue
		}
		if _, ok := keyOf(rec, g.Key); !ok {
			continue
		}
		if g.SecondKey != "" {
			if _, ok := keyOf(rec, g.SecondKey); !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

// lessKey orders keys numerically when both are numbers, lexically otherwise.
func lessKey(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil && fa != fb {
		return fa < fb
	}
	return a < b
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// percent returns part/whole*100, or 0 when whole is zero.
func percent(part, whole float64) float64 {
	if whole == 0 || !finite(whole) {
		return 0
	}
	return part / whole * 100
}
