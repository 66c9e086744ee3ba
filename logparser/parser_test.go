package logparser

import (
	"errors"
	"math"
	"testing"

	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/testutil"
	"github.com/ChristianF88/searchviz/variable"
)

func mustParser(t *testing.T, header []string) *Parser {
	t.Helper()
	p, err := NewParser(header)
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}
	return p
}

func TestParseStringScenario(t *testing.T) {
	records, stats, err := mustParser(t, nil).ParseString(testutil.ScenarioLog)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	if stats.Rows != 3 || stats.MissingIDs != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(records) != 4 {
		t.Fatalf("expected 3 rows plus synthetic root, got %d", len(records))
	}

	wantIDs := []int64{-1, 0, 1, 2}
	for i, id := range wantIDs {
		if records[i].ID != id {
			t.Errorf("records[%d].ID = %d, want %d", i, records[i].ID, id)
		}
	}

	root := records[0]
	if !root.Root || root.ParentID != -6 || root.VisID != 0 || root.TimeTaken != 0 {
		t.Errorf("unexpected synthetic root %+v", root)
	}

	first := records[1]
	if first.Status != ingestor.StatusFailed || first.Timestamp != 10 || first.ParentID != -1 {
		t.Errorf("unexpected record 0: %+v", first)
	}
	if first.Var.Variable != "x_1" || first.Var.Group != "x" {
		t.Errorf("unexpected variable %+v", first.Var)
	}

	orphan := records[3]
	if orphan.Var.Group != variable.NA {
		t.Errorf("expected NA group for blank label, got %q", orphan.Var.Group)
	}
	// absent columns are carried as missing values
	if !math.IsNaN(orphan.Depth) || !math.IsNaN(orphan.DecisionLevel) {
		t.Error("expected absent float columns to be NaN")
	}
	if orphan.GID != ingestor.Missing {
		t.Error("expected absent gid to be missing")
	}
}

func TestParseMalformedCells(t *testing.T) {
	log := "id,parentId,status,alternative,depth,timestamp\n" +
		"0,-1,1,0,abc,10\n" +
		"1,zero,9,x,2,\n" +
		"nope,0,1,0,1,5\n"
	records, stats, err := mustParser(t, nil).ParseString(log)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	if stats.MissingIDs != 1 {
		t.Errorf("expected one row without numeric id, got %+v", stats)
	}
	if len(records) != 4 {
		t.Fatalf("expected 3 rows plus root, got %d", len(records))
	}

	// the row without id sorts first and keeps its other cells
	idless := records[0]
	if idless.ID != ingestor.Missing || idless.ParentID != 0 || idless.Timestamp != 5 {
		t.Errorf("expected the id-less row to be kept, got id=%d parent=%d ts=%v", idless.ID, idless.ParentID, idless.Timestamp)
	}

	r0 := records[2]
	if !math.IsNaN(r0.Depth) {
		t.Errorf("expected NaN depth, got %v", r0.Depth)
	}
	r1 := records[3]
	if r1.ParentID != ingestor.Missing || r1.Alternative != ingestor.Missing {
		t.Errorf("expected missing integer cells, got parent=%d alt=%d", r1.ParentID, r1.Alternative)
	}
	if r1.Status != ingestor.StatusMalformed {
		t.Errorf("expected malformed status, got %v", r1.Status)
	}
	if !math.IsNaN(r1.Timestamp) {
		t.Errorf("expected NaN timestamp, got %v", r1.Timestamp)
	}
}

func TestParseSolutionPayloads(t *testing.T) {
	log := `id,parentId,solutionString
0,-1,"{""cost"": [[1, 5]]}"
1,0,"{broken"
2,0,
`
	records, stats, err := mustParser(t, nil).ParseString(log)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	if stats.BadPayloads != 1 {
		t.Errorf("expected 1 bad payload, got %d", stats.BadPayloads)
	}
	if records[1].Solution == nil {
		t.Fatal("expected parsed solution for node 0")
	}
	if lo, hi, ok := records[1].Solution.Domain("cost"); !ok || lo != 1 || hi != 5 {
		t.Errorf("unexpected domain (%v,%v,%v)", lo, hi, ok)
	}
	if records[2].Solution != nil {
		t.Error("malformed payload must leave Solution nil")
	}
	if records[3].Solution != nil {
		t.Error("empty payload must leave Solution nil")
	}
}

func TestParseOptionalColumns(t *testing.T) {
	log := "gid,id,parentId,nogoodBLD,usesAssumptions,backjumpDestination,unknownColumn\n" +
		"77,0,-1,3,1,2,whatever\n"
	records, _, err := mustParser(t, nil).ParseString(log)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	r := records[1]
	if r.GID != 77 || r.NogoodBLD != 3 || !r.UsesAssumptions || r.BackjumpDestination != 2 {
		t.Errorf("unexpected optional columns %+v", r)
	}
	if r.SelectionID() != 77 {
		t.Errorf("expected selection by gid, got %d", r.SelectionID())
	}
}

func TestParseSortsByID(t *testing.T) {
	log := "id,parentId\n5,-1\n2,-1\n9,5\n0,-1\n"
	records, _, err := mustParser(t, nil).ParseString(log)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].ID > records[i].ID {
			t.Fatalf("records not sorted: %d before %d", records[i-1].ID, records[i].ID)
		}
	}
	if records[0].ID != ingestor.RootID {
		t.Errorf("synthetic root must sort first, got %d", records[0].ID)
	}
}

func TestParseErrors(t *testing.T) {
	p := mustParser(t, nil)
	if _, _, err := p.ParseString(""); !errors.Is(err, ErrNoHeader) {
		t.Errorf("expected ErrNoHeader, got %v", err)
	}
	if _, _, err := p.ParseString("parentId,status\n1,2\n"); err == nil {
		t.Error("expected error for header without id column")
	}
	if _, err := NewParser([]string{"label"}); err == nil {
		t.Error("expected error for explicit header without id column")
	}
}

func TestParseHeaderless(t *testing.T) {
	p := mustParser(t, DefaultHeader)
	records, _, err := p.ParseString("0,-1,1,0,1,1,x_2==1,,,,,,,,,4,\n")
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	if len(records) != 2 || records[1].Timestamp != 4 || records[1].Var.Variable != "x_2" {
		t.Errorf("unexpected headerless parse %+v", records)
	}
}

func TestParseLine(t *testing.T) {
	p := mustParser(t, DefaultHeader)
	rec, err := p.ParseLine(`3,1,0,1,2,2,y_1 >= 4,,,,,,,,,12,"{""nogoods"": [1]}"`)
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if rec.ID != 3 || rec.ParentID != 1 || rec.Alternative != 1 {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Var.Variable != "y_1" {
		t.Errorf("expected variable y_1, got %q", rec.Var.Variable)
	}
	if !rec.HasNogoods() || rec.Solution.Nogoods[0] != 1 {
		t.Errorf("expected nogoods [1], got %+v", rec.Solution)
	}

	idless, err := p.ParseLine("x,1,0,0,1,1,z == 2")
	if err != nil {
		t.Fatalf("a row without numeric id should still parse: %v", err)
	}
	if idless.ID != ingestor.Missing || idless.ParentID != 1 || idless.Var.Variable != "z" {
		t.Errorf("unexpected id-less record %+v", idless)
	}
	if rec, err := p.ParseLine(""); rec != nil || err == nil {
		t.Error("expected an empty line to be unreadable")
	}
	if _, err := mustParser(t, nil).ParseLine("1,0"); !errors.Is(err, ErrNoHeader) {
		t.Errorf("expected ErrNoHeader, got %v", err)
	}
}

func TestCoerceTypes(t *testing.T) {
	rec := CoerceTypes(map[string]string{
		"id":       "4",
		"parentId": "2.0",
		"depth":    " 3 ",
		"label":    "z == 1",
		"status":   "0",
		"bogus":    "1",
	})
	if rec.ID != 4 || rec.ParentID != 2 || rec.Depth != 3 || rec.Status != ingestor.StatusSolved {
		t.Errorf("unexpected coercion %+v", rec)
	}
	if rec.Label != "z == 1" {
		t.Errorf("label must be untouched, got %q", rec.Label)
	}
	if !math.IsNaN(rec.Timestamp) {
		t.Error("absent timestamp must be NaN")
	}
}

func TestParseIntFractional(t *testing.T) {
	if got := parseInt("2.5"); got != ingestor.Missing {
		t.Errorf("parseInt(2.5) = %d, want Missing", got)
	}
	if got := parseInt("-7"); got != -7 {
		t.Errorf("parseInt(-7) = %d", got)
	}
}

func TestParseGeneratedLog(t *testing.T) {
	log := testutil.GenerateSearchLog(500, 100)
	records, stats, err := mustParser(t, nil).ParseString(log)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	if stats.Rows != 500 || stats.MissingIDs != 0 || stats.BadPayloads != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(records) != 501 {
		t.Errorf("expected 501 records, got %d", len(records))
	}
	for _, r := range records[1:] {
		if r.Var.Group != "x" && r.Var.Group != "b" {
			t.Fatalf("unexpected group %q for label %q", r.Var.Group, r.Label)
		}
	}
}

func TestParseFile(t *testing.T) {
	path := testutil.WriteFile(t, "search.csv", testutil.ScenarioLog)
	records, _, err := mustParser(t, nil).ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(records) != 4 {
		t.Errorf("expected 4 records, got %d", len(records))
	}
	if _, _, err := mustParser(t, nil).ParseFile(path + ".missing"); err == nil {
		t.Error("expected error for missing file")
	}
}
