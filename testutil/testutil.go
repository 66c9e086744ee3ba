package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
)

// SearchLogHeader is the column order written by GenerateSearchLog.
var SearchLogHeader = []string{
	"id", "gid", "parentId", "status", "alternative", "decisionLevel", "depth", "label",
	"subtreeDepth", "subtreeSolutions", "subtreeSize", "nogoodStringLength", "nogoodString",
	"nogoodLength", "nogoodNumberVariables", "backjumpDistance", "timestamp", "solutionString",
}

// Manifest declares the variables used by GenerateSearchLog.
const Manifest = "x_1_1 x_1_2 x_1_3 x_2_1 x_2_2 x_2_3 x_3_1 x_3_2 x_3_3 cost;b_1 b_2 b_3"

// GenerateSearchLog builds a CSV search log of a binary search tree with
// numNodes nodes. Node i hangs under (i-1)/2, restart roots under the
// synthetic root. Leaves fail except every seventh, which is a solution. Every
// restartEvery nodes (if > 0) a new restart root is started.
func GenerateSearchLog(numNodes, restartEvery int) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(SearchLogHeader)

	base := 0
	for i := 0; i < numNodes; i++ {
		if restartEvery > 0 && i > 0 && i%restartEvery == 0 {
			base = i
		}
		local := i - base

		parent := int64(-1)
		if local > 0 {
			parent = int64(base + (local-1)/2)
		}

		depth := 0
		for n := local + 1; n > 1; n >>= 1 {
			depth++
		}
		alternative := 0
		if local > 0 {
			alternative = (local - 1) % 2
		}

		firstChild := base + 2*local + 1
		isLeaf := firstChild >= numNodes || (restartEvery > 0 && 2*local+1 >= restartEvery)
		status := 2
		solution := ""
		nogood := ""
		nogoodLength := ""
		if isLeaf {
			status = 1
			nogood = fmt.Sprintf("x_%d_%d != %d", i%3+1, (i/3)%3+1, i%5)
			nogoodLength = "1"
			if i > 2 {
				solution = fmt.Sprintf(`{"nogoods": [%d, %d]}`, i-1, i-2)
			}
			if i%7 == 0 {
				status = 0
				nogood = ""
				nogoodLength = ""
				solution = fmt.Sprintf(`{"cost": [[%d, %d]]}`, 10-i%5, 20+i%5)
			}
		}

		label := fmt.Sprintf("x_%d_%d == %d", i%3+1, (i/3)%3+1, i%4)
		if i%5 == 4 {
			label = fmt.Sprintf("b_%d_i == 1", i%3+1)
		}

		_ = w.Write([]string{
			strconv.Itoa(i),
			strconv.Itoa(1000 + i),
			strconv.FormatInt(parent, 10),
			strconv.Itoa(status),
			strconv.Itoa(alternative),
			strconv.Itoa(depth),
			strconv.Itoa(depth),
			label,
			"", "", "",
			strconv.Itoa(len(nogood)),
			nogood,
			nogoodLength,
			nogoodLength,
			strconv.Itoa(i % 3),
			strconv.Itoa(2 * (i + 1)),
			solution,
		})
	}
	w.Flush()
	return sb.String()
}

// GenerateSearchLogFile writes GenerateSearchLog output and the manifest to
// temporary files. Returns both paths and a cleanup function.
func GenerateSearchLogFile(t *testing.T, numNodes, restartEvery int) (string, string, func()) {
	t.Helper()

	logFile, err := os.CreateTemp("", "search_*.csv")
	if err != nil {
		t.Fatalf("Failed to create temp log file: %v", err)
	}
	if _, err := logFile.WriteString(GenerateSearchLog(numNodes, restartEvery)); err != nil {
		t.Fatalf("Failed to write to temp log file: %v", err)
	}
	logFile.Close()

	manifestFile, err := os.CreateTemp("", "vars_*.txt")
	if err != nil {
		t.Fatalf("Failed to create temp manifest file: %v", err)
	}
	if _, err := manifestFile.WriteString(Manifest); err != nil {
		t.Fatalf("Failed to write to temp manifest file: %v", err)
	}
	manifestFile.Close()

	cleanup := func() {
		os.Remove(logFile.Name())
		os.Remove(manifestFile.Name())
	}

	return logFile.Name(), manifestFile.Name(), cleanup
}

// ScenarioLog is the three node log used by end-to-end tests: a failure at
// the root, a solution below it, and an orphan whose parent never resolves.
const ScenarioLog = `id,parentId,status,alternative,label,timestamp
0,-1,1,0,x_1==2,10
1,0,0,0,x_1==3,25
2,-5,2,0,,30
`

// TempFilePath returns a cross-platform temporary file path
// with the given pattern. Does not create the file.
func TempFilePath(t *testing.T, pattern string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	path := tmpFile.Name()
	tmpFile.Close()
	os.Remove(path) // Remove immediately, just need the path

	return path
}

// WriteFile writes content to a new file in t.TempDir and returns its path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := t.TempDir() + string(os.PathSeparator) + name
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}
