package analysis

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/logparser"
	"github.com/ChristianF88/searchviz/testutil"
	"github.com/ChristianF88/searchviz/tree"
)

func build(t testing.TB, log string) *tree.Forest {
	t.Helper()
	p, err := logparser.NewParser(nil)
	require.NoError(t, err)
	records, _, err := p.ParseString(log)
	require.NoError(t, err)
	return tree.Build(records, tree.Options{})
}

func TestComputeTotalsScenario(t *testing.T) {
	f := build(t, testutil.ScenarioLog)
	totals := ComputeTotals(f.Records)
	assert.Equal(t, Totals{Nodes: 4, Time: 30, Failures: 1, Solutions: 1}, totals)
}

func TestComputeTotalsIgnoresMalformedTimestamps(t *testing.T) {
	f := build(t, "id,parentId,timestamp\n0,-1,abc\n1,0,Inf\n2,0,7\n")
	assert.Equal(t, 7.0, ComputeTotals(f.Records).Time)
}

func TestAggregateScenario(t *testing.T) {
	f := build(t, testutil.ScenarioLog)
	totals := ComputeTotals(f.Records)

	table, err := Aggregate(f.Records, totals, Grouping{Key: KeyVariable, LeftOnly: true})
	require.NoError(t, err)
	require.Equal(t, []string{"x_1"}, table.Keys())

	b := table.Lookup("x_1")
	assert.Equal(t, 2, b.CountNodes)
	assert.Equal(t, 2, b.CountLeftNodes)
	assert.InDelta(t, 50, b.PercentNodes, 1e-9)
	assert.Equal(t, 0.0, b.AverageDepth, "missing depths are skipped")
	assert.InDelta(t, 12.5, b.AverageElapsed, 1e-9)
	assert.InDelta(t, 25, b.SumElapsed, 1e-9)
	assert.InDelta(t, 25.0/30*100, b.PercentTime, 1e-9)
	assert.Equal(t, 1, b.FailureCount)
	assert.InDelta(t, 100, b.PercentFailuresOfTotal, 1e-9)
	assert.InDelta(t, 50, b.PercentFailedOfBucket, 1e-9)

	groups, err := Aggregate(f.Records, totals, Grouping{Key: KeyVariableGroup, LeftOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, groups.Keys())

	restarts, err := Aggregate(f.Records, totals, Grouping{Key: KeyRestartID, LeftOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, restarts.Keys())
	assert.Equal(t, 2, restarts.Lookup("0").CountNodes)
	assert.Equal(t, 1, restarts.Lookup("1").CountNodes)
}

func TestAggregateMissingBucketIsZero(t *testing.T) {
	f := build(t, testutil.ScenarioLog)
	table, err := Aggregate(f.Records, ComputeTotals(f.Records), Grouping{Key: KeyVariable})
	require.NoError(t, err)

	b := table.Lookup("y_9")
	assert.Equal(t, Bucket{Key: "y_9"}, b)

	var nilTable *Table
	assert.Equal(t, Bucket{Key: "z"}, nilTable.Lookup("z"))
	var nilCross *CrossTable
	assert.Equal(t, Bucket{Key: "0"}, nilCross.Lookup("x", "0"))
}

func TestAggregateZeroDenominators(t *testing.T) {
	f := build(t, "id,parentId,status,label\n0,-1,2,x_1==1\n")
	table, err := Aggregate(f.Records, ComputeTotals(f.Records), Grouping{Key: KeyVariable})
	require.NoError(t, err)
	b := table.Lookup("x_1")
	assert.Equal(t, 1, b.CountNodes)
	assert.Equal(t, 0.0, b.PercentTime, "no timestamps means no total time")
	assert.Equal(t, 0.0, b.PercentFailuresOfTotal, "no failures in the session")
}

func TestAggregateTotalInvariant(t *testing.T) {
	f := build(t, testutil.GenerateSearchLog(500, 60))
	totals := ComputeTotals(f.Records)

	for _, key := range []string{KeyVariable, KeyVariableGroup, KeyRestartID} {
		for _, leftOnly := range []bool{true, false} {
			g := Grouping{Key: key, LeftOnly: leftOnly}
			table, err := Aggregate(f.Records, totals, g)
			require.NoError(t, err)

			sum := 0
			for _, b := range table.Buckets {
				sum += b.CountNodes
			}
			assert.Equal(t, len(Select(f.Records, g)), sum, "key %s leftOnly %v", key, leftOnly)
			assert.Equal(t, table.Input, sum)
		}
	}
}

func TestAggregateTotalInvariantRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	labels := []string{"", "x_1 == 1", "x_2 >= 3", "y_1_2 != 0", "X_INTRODUCED_4 = 1", "b_3_i == 1", "_i"}
	for run := 0; run < 20; run++ {
		var records []*ingestor.Record
		n := rng.Intn(100) + 1
		for i := 0; i < n; i++ {
			rec := ingestor.NewRecord()
			rec.ID = int64(i)
			rec.ParentID = int64(rng.Intn(n+1)) - 1
			rec.Alternative = int64(rng.Intn(3))
			rec.Label = labels[rng.Intn(len(labels))]
			logparser.ResolveVariable(rec)
			records = append(records, rec)
		}
		records = logparser.AppendSyntheticRoot(records)
		f := tree.Build(records, tree.Options{})
		totals := ComputeTotals(f.Records)

		for _, key := range []string{KeyVariable, KeyVariableGroup, KeyRestartID} {
			g := Grouping{Key: key, LeftOnly: run%2 == 0}
			table, err := Aggregate(f.Records, totals, g)
			require.NoError(t, err)
			sum := 0
			for _, b := range table.Buckets {
				sum += b.CountNodes
			}
			require.Equal(t, len(Select(f.Records, g)), sum, "run %d key %s", run, key)
		}
	}
}

func TestAggregateBucketsAscending(t *testing.T) {
	f := build(t, testutil.GenerateSearchLog(400, 25))
	table, err := Aggregate(f.Records, ComputeTotals(f.Records), Grouping{Key: KeyRestartID})
	require.NoError(t, err)

	keys := table.Keys()
	require.Len(t, keys, 16)
	assert.True(t, sort.SliceIsSorted(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) }))
	assert.Equal(t, "9", keys[9])
	assert.Equal(t, "10", keys[10], "restart ids sort numerically")
}

func TestLessKey(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"2", "10", true},
		{"10", "2", false},
		{"x_10", "x_2", true},
		{"1.5", "2", true},
		{"a", "b", true},
		{"b", "b", false},
	}
	for _, tt := range tests {
		if got := lessKey(tt.a, tt.b); got != tt.want {
			t.Errorf("lessKey(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestAggregateCross(t *testing.T) {
	f := build(t, testutil.GenerateSearchLog(30, 10))
	totals := ComputeTotals(f.Records)
	g := Grouping{Key: KeyVariable, SecondKey: KeyRestartID}

	cross, err := AggregateCross(f.Records, totals, g)
	require.NoError(t, err)
	assert.True(t, sort.SliceIsSorted(cross.Outer, func(i, j int) bool { return lessKey(cross.Outer[i], cross.Outer[j]) }))

	sum := 0
	for _, outer := range cross.Outer {
		for _, b := range cross.Rows[outer].Buckets {
			sum += b.CountNodes
			assert.Equal(t, b, cross.Lookup(outer, b.Key))
		}
	}
	assert.Equal(t, len(Select(f.Records, g)), sum)
	assert.Equal(t, cross.Input, sum)

	// every node of restart 1 branching on x_1_1
	want := 0
	for _, r := range f.Records {
		if r.Var.Variable == "x_1_1" && r.RestartID == 1 && r.ID >= 0 {
			want++
		}
	}
	assert.Equal(t, want, cross.Lookup("x_1_1", "1").CountNodes)
	assert.Equal(t, 0, cross.Lookup("x_1_1", "99").CountNodes)
}

func TestGroupingValidation(t *testing.T) {
	_, err := Aggregate(nil, Totals{}, Grouping{Key: "depth"})
	assert.Error(t, err)

	_, err = AggregateCross(nil, Totals{}, Grouping{Key: KeyVariable})
	assert.Error(t, err, "cross aggregation needs a second key")

	_, err = AggregateCross(nil, Totals{}, Grouping{Key: KeyVariable, SecondKey: KeyVariable})
	assert.Error(t, err)

	_, err = AggregateCross(nil, Totals{}, Grouping{Key: KeyVariable, SecondKey: "status"})
	assert.Error(t, err)

	table, err := Aggregate(nil, Totals{}, Grouping{Key: KeyVariable, SecondKey: KeyRestartID})
	require.NoError(t, err, "single key aggregation ignores the second key")
	assert.Empty(t, table.Buckets)
}

func TestSelectExcludesSentinels(t *testing.T) {
	f := build(t, testutil.ScenarioLog)
	for _, rec := range Select(f.Records, Grouping{Key: KeyRestartID}) {
		assert.NotEqual(t, ingestor.RootID, rec.ID, "synthetic root has no restart")
	}
	for _, rec := range Select(f.Records, Grouping{Key: KeyVariableGroup}) {
		assert.NotEqual(t, int64(2), rec.ID, "unlabelled node has no group")
	}
}

func BenchmarkAggregate(b *testing.B) {
	f := build(b, testutil.GenerateSearchLog(100000, 5000))
	totals := ComputeTotals(f.Records)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Aggregate(f.Records, totals, Grouping{Key: KeyVariable, LeftOnly: true}); err != nil {
			b.Fatal(err)
		}
	}
}
