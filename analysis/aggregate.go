package analysis

import (
	"fmt"
	"sort"

	"github.com/ChristianF88/searchviz/ingestor"
)

// Bucket holds the statistics of all records sharing one key.
type Bucket struct {
	Key                    string
	CountNodes             int
	CountLeftNodes         int
	PercentNodes           float64
	AverageDepth           float64
	AverageElapsed         float64
	SumElapsed             float64
	PercentTime            float64
	FailureCount           int
	PercentFailuresOfTotal float64
	PercentFailedOfBucket  float64
}

// Table is a single key aggregation, buckets in ascending key order.
type Table struct {
	Grouping Grouping
	Buckets  []Bucket
	// Input is the number of records that passed the filter.
	Input int

	byKey map[string]int
}

// Lookup returns the bucket for key, or a zero bucket carrying the key.
func (t *Table) Lookup(key string) Bucket {
	if t != nil {
		if i, ok := t.byKey[key]; ok {
			return t.Buckets[i]
		}
	}
	return Bucket{Key: key}
}

// Keys returns the bucket keys in order.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.Buckets))
	for i, b := range t.Buckets {
		keys[i] = b.Key
	}
	return keys
}

// CrossTable is a two key aggregation: outer key, then inner key.
type CrossTable struct {
	Grouping Grouping
	Outer    []string
	Rows     map[string]*Table
	Input    int
}

// Lookup returns the bucket for the key pair, or a zero bucket.
func (c *CrossTable) Lookup(outer, inner string) Bucket {
	if c != nil {
		if row, ok := c.Rows[outer]; ok {
			return row.Lookup(inner)
		}
	}
	return Bucket{Key: inner}
}

type accumulator struct {
	count, left, failures int
	depthSum              float64
	depthN                int
	elapsedSum            float64
	elapsedN              int
}

func (a *accumulator) add(rec *ingestor.Record) {
	a.count++
	if rec.IsLeft() {
		a.left++
	}
	if rec.Status == ingestor.StatusFailed {
		a.failures++
	}
	if finite(rec.Depth) {
		a.depthSum += rec.Depth
		a.depthN++
	}
	if finite(rec.TimeTaken) {
		a.elapsedSum += rec.TimeTaken
		a.elapsedN++
	}
}

func (a *accumulator) bucket(key string, totals Totals) Bucket {
	b := Bucket{
		Key:                    key,
		CountNodes:             a.count,
		CountLeftNodes:         a.left,
		PercentNodes:           percent(float64(a.count), float64(totals.Nodes)),
		SumElapsed:             a.elapsedSum,
		PercentTime:            percent(a.elapsedSum, totals.Time),
		FailureCount:           a.failures,
		PercentFailuresOfTotal: percent(float64(a.failures), float64(totals.Failures)),
		PercentFailedOfBucket:  percent(float64(a.failures), float64(a.count)),
	}
	if a.depthN > 0 {
		b.AverageDepth = a.depthSum / float64(a.depthN)
	}
	if a.elapsedN > 0 {
		b.AverageElapsed = a.elapsedSum / float64(a.elapsedN)
	}
	return b
}

// Aggregate groups records by g.Key. g.SecondKey is ignored; use
// AggregateCross for two key tables.
func Aggregate(records []*ingestor.Record, totals Totals, g Grouping) (*Table, error) {
	g.SecondKey = ""
	if err := g.Validate(); err != nil {
		return nil, err
	}
	selected := Select(records, g)
	return aggregate(selected, totals, g), nil
}

func aggregate(selected []*ingestor.Record, totals Totals, g Grouping) *Table {
	accs := make(map[string]*accumulator)
	for _, rec := range selected {
		key, _ := keyOf(rec, g.Key)
		acc, ok := accs[key]
		if !ok {
			acc = &accumulator{}
			accs[key] = acc
		}
		acc.add(rec)
	}

	keys := make([]string, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	t := &Table{
		Grouping: g,
		Buckets:  make([]Bucket, len(keys)),
		Input:    len(selected),
		byKey:    make(map[string]int, len(keys)),
	}
	for i, k := range keys {
		t.Buckets[i] = accs[k].bucket(k, totals)
		t.byKey[k] = i
	}
	return t
}

// AggregateCross groups records by g.Key and, within each, by g.SecondKey.
func AggregateCross(records []*ingestor.Record, totals Totals, g Grouping) (*CrossTable, error) {
	if g.SecondKey == "" {
		return nil, fmt.Errorf("cross aggregation by %q needs a second key", g.Key)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	selected := Select(records, g)
	groups := make(map[string][]*ingestor.Record)
	for _, rec := range selected {
		key, _ := keyOf(rec, g.Key)
		groups[key] = append(groups[key], rec)
	}

	c := &CrossTable{
		Grouping: g,
		Rows:     make(map[string]*Table, len(groups)),
		Input:    len(selected),
	}
	inner := Grouping{Key: g.SecondKey, LeftOnly: g.LeftOnly}
	for key, recs := range groups {
		c.Outer = append(c.Outer, key)
		c.Rows[key] = aggregate(recs, totals, inner)
	}
	sort.Slice(c.Outer, func(i, j int) bool { return lessKey(c.Outer[i], c.Outer[j]) })
	return c, nil
}
