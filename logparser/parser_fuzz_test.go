package logparser

import (
	"strings"
	"testing"

	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/testutil"
)

func FuzzParseString(f *testing.F) {
	seeds := []string{
		"id,parentId,status,alternative,label,timestamp\n0,-1,1,0,x_1==2,10\n1,0,0,0,x_1==3,25\n",
		"id,parentId,solutionString\n0,-1,\"{\"\"cost\"\": [[1, 5]]}\"\n",
		"id,parentId,solutionString\n0,-1,{not json\n",
		// Edge cases
		"",
		"id\n",
		"parentId,status\n0,1\n",
		"id,parentId\nabc,def\n1\n",
		"id,label\n0,\x00x_1_2 == 1\n",
		"id,parentId\n,0\n0,-1\n",
		strings.Repeat("id,", 50) + "\n1\n",
		// Mismatched quotes
		"id,label\n0,\"x_1 == 1\n",
		"id,label\n\"unterminated",
		testutil.ScenarioLog,
		"id,parentId,solutionString\n0,-1,\"{\"\"nogoods\"\": [0]}\"\n",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	parser, err := NewParser(nil)
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, data string) {
		records, stats, err := parser.ParseString(data)
		if err != nil {
			return
		}
		if len(records) == 0 || records[len(records)-1].ID < records[0].ID {
			t.Fatalf("records not ordered or root missing: %d records", len(records))
		}
		if stats.Rows != len(records)-1 {
			t.Fatalf("rows %d, kept %d: every row must survive parsing", stats.Rows, len(records)-1)
		}
		for _, r := range records {
			if r.Root && r.ID == ingestor.RootID {
				return
			}
		}
		t.Fatal("synthetic root missing")
	})
}

func FuzzParseLine(f *testing.F) {
	f.Add("0,-1,2,0,0,0,x_1_1 == 1,,,,,,,,,10,")
	f.Add("3,1,0,0,1,1,x_2_1 == 1,,,,,,,,,40,{bad")
	f.Add("garbage,row")
	f.Add("")
	f.Add("\"")

	parser, err := NewParser(DefaultHeader)
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, line string) {
		rec, err := parser.ParseLine(line)
		if rec == nil {
			if err == nil {
				t.Fatalf("ParseLine(%q) returned neither record nor error", line)
			}
			return
		}
		if rec.Var.Variable == "" {
			t.Fatalf("ParseLine(%q) left the variable unresolved", line)
		}
	})
}
