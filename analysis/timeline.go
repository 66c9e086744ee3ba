package analysis

import (
	"math"
	"sort"

	"github.com/ChristianF88/searchviz/ingestor"
)

// TimelineBucket summarizes a consecutive slice of nodes in id order.
type TimelineBucket struct {
	Index                  int
	Count                  int
	MedianDecisionLevel    float64
	MinDepth               float64
	MaxDepth               float64
	MedianDepth            float64
	MedianNogoodLength     float64 // failures only
	MedianBackjumpDistance float64 // failures only
	Nogoods                int
	Solutions              int
	PercentLeftNodes       float64
	PercentTime            float64
	FutureNogoods          int // leaves reused by more than one later nogood
}

// Timeline splits the records into slices by visit position. A percent of 1
// yields 100 slices over the whole search; larger values refine it.
func Timeline(records []*ingestor.Record, totals Totals, percent float64) []TimelineBucket {
	if percent <= 0 || !finite(percent) {
		percent = 1
	}
	if len(records) == 0 || totals.Nodes == 0 {
		return nil
	}

	groups := make(map[int][]*ingestor.Record)
	for _, rec := range records {
		idx := int(math.Floor(float64(rec.VisID) * 100 * percent / float64(totals.Nodes)))
		groups[idx] = append(groups[idx], rec)
	}

	indexes := make([]int, 0, len(groups))
	for idx := range groups {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]TimelineBucket, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, timelineBucket(idx, groups[idx], totals))
	}
	return out
}

func timelineBucket(idx int, recs []*ingestor.Record, totals Totals) TimelineBucket {
	b := TimelineBucket{Index: idx, Count: len(recs)}

	var decision, depth, nogoodLength, backjump []float64
	var elapsed float64
	left := 0
	for _, rec := range recs {
		decision = appendFinite(decision, rec.DecisionLevel)
		depth = appendFinite(depth, rec.Depth)
		if finite(rec.TimeTaken) {
			elapsed += rec.TimeTaken
		}
		if rec.IsLeft() {
			left++
		}
		switch rec.Status {
		case ingestor.StatusFailed:
			b.Nogoods++
			nogoodLength = appendFinite(nogoodLength, rec.NogoodLength)
			backjump = appendFinite(backjump, rec.BackjumpDistance)
		case ingestor.StatusSolved:
			b.Solutions++
		}
		if rec.IsLeaf() && len(rec.FutureNogoods) > 1 {
			b.FutureNogoods += len(rec.FutureNogoods)
		}
	}

	b.MedianDecisionLevel = median(decision)
	b.MedianDepth = median(depth)
	if len(depth) > 0 {
		b.MinDepth, b.MaxDepth = depth[0], depth[len(depth)-1]
	}
	b.MedianNogoodLength = median(nogoodLength)
	b.MedianBackjumpDistance = median(backjump)
	b.PercentLeftNodes = percent(float64(left), float64(len(recs)))
	b.PercentTime = percent(elapsed, totals.Time)
	return b
}

func appendFinite(values []float64, f float64) []float64 {
	if finite(f) {
		return append(values, f)
	}
	return values
}

// median sorts values in place. Empty input yields 0.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sort.Float64s(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
