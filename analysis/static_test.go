package analysis

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ChristianF88/searchviz/config"
	"github.com/ChristianF88/searchviz/output"
	"github.com/ChristianF88/searchviz/testutil"
	"github.com/ChristianF88/searchviz/variable"
)

func hasWarning(out *output.JSONOutput, warningType string, count int) bool {
	for _, w := range out.Warnings {
		if w.Type == warningType && w.Count == count {
			return true
		}
	}
	return false
}

func TestStaticFromConfigBasic(t *testing.T) {
	logFile, manifestFile, cleanup := testutil.GenerateSearchLogFile(t, 200, 50)
	defer cleanup()

	cfg := &config.Config{
		Global: &config.GlobalConfig{ObjectiveDomain: "cost"},
		Static: &config.StaticConfig{
			LogFile:         logFile,
			ManifestFile:    manifestFile,
			TimelinePercent: 1,
		},
		StaticViews: map[string]*config.ViewConfig{
			"byGroup":    {Key: "variableGroup", LeftOnly: true},
			"perRestart": {Key: "variable", SecondKey: "restartId"},
		},
	}

	result, session, err := StaticFromConfig(cfg)
	if err != nil {
		t.Fatalf("StaticFromConfig failed: %v", err)
	}
	if result == nil || session == nil {
		t.Fatal("Result is nil")
	}

	if result.Metadata.SessionID != session.ID {
		t.Errorf("Expected session id %s, got %s", session.ID, result.Metadata.SessionID)
	}
	if result.General.TotalRecords != 201 {
		t.Errorf("Expected 201 records, got %d", result.General.TotalRecords)
	}
	if result.General.Parsing.Rows != 200 {
		t.Errorf("Expected 200 parsed rows, got %d", result.General.Parsing.Rows)
	}
	if result.General.VariableGroups != 3 {
		t.Errorf("Expected 3 variable groups, got %d", result.General.VariableGroups)
	}
	if result.Forest.Restarts != 4 {
		t.Errorf("Expected 4 restarts, got %d", result.Forest.Restarts)
	}
	if result.Forest.Dangling != 0 {
		t.Errorf("Expected no dangling parents, got %d", result.Forest.Dangling)
	}

	if len(result.Aggregations) != 2 {
		t.Fatalf("Expected 2 aggregations, got %d", len(result.Aggregations))
	}
	byGroup, ok := result.Aggregation("byGroup")
	if !ok {
		t.Fatal("Expected byGroup aggregation")
	}
	if byGroup.Parameters.Key != "variableGroup" || !byGroup.Parameters.LeftOnly {
		t.Errorf("Unexpected parameters %+v", byGroup.Parameters)
	}
	perRestart, _ := result.Aggregation("perRestart")
	for _, b := range perRestart.Buckets {
		if b.SecondKey == "" {
			t.Fatalf("Cross tab bucket without second key: %+v", b)
		}
	}

	if result.Timeline == nil || len(result.Timeline.Buckets) == 0 {
		t.Error("Expected timeline buckets")
	}
	if len(result.Grids) != 2 {
		t.Errorf("Expected 2 grids, got %d", len(result.Grids))
	}

	if hasWarning(result, "config_warning", 1) {
		t.Error("Configured views must not trigger the default view warning")
	}

	if _, err := result.ToJSON(); err != nil {
		t.Errorf("Result must serialize: %v", err)
	}
}

func TestStaticFromConfigScenarioWarnings(t *testing.T) {
	logFile := testutil.WriteFile(t, "scenario.csv", testutil.ScenarioLog)
	manifestFile := testutil.WriteFile(t, "vars.txt", "x_1 x_2;")

	cfg := &config.Config{
		Static: &config.StaticConfig{LogFile: logFile, ManifestFile: manifestFile},
	}
	result, _, err := StaticFromConfig(cfg)
	if err != nil {
		t.Fatalf("StaticFromConfig failed: %v", err)
	}

	if !hasWarning(result, "config_warning", 1) {
		t.Error("Expected default view warning")
	}
	if !hasWarning(result, "dangling_parent", 1) {
		t.Errorf("Expected dangling parent warning, got %+v", result.Warnings)
	}
	if len(result.Aggregations) != len(DefaultViews()) {
		t.Errorf("Expected default views, got %d", len(result.Aggregations))
	}
	if result.Totals.Time != 30 || result.Totals.Nodes != 4 {
		t.Errorf("Unexpected totals %+v", result.Totals)
	}
}

func TestStaticFromConfigBadPayloadWarning(t *testing.T) {
	log := "id,parentId,solutionString\n0,-1,{broken\n1,0,\"{\"\"nogoods\"\": [7]}\"\n"
	logFile := testutil.WriteFile(t, "bad.csv", log)
	manifestFile := testutil.WriteFile(t, "vars.txt", ";")

	result, _, err := StaticFromConfig(&config.Config{
		Static: &config.StaticConfig{LogFile: logFile, ManifestFile: manifestFile},
	})
	if err != nil {
		t.Fatalf("StaticFromConfig failed: %v", err)
	}
	if !hasWarning(result, "bad_payload", 1) {
		t.Errorf("Expected bad payload warning, got %+v", result.Warnings)
	}
	if !hasWarning(result, "dangling_nogood", 1) {
		t.Errorf("Expected dangling nogood warning, got %+v", result.Warnings)
	}
	if !hasWarning(result, "empty_manifest", 1) {
		t.Errorf("Expected empty manifest warning, got %+v", result.Warnings)
	}
}

func TestStaticFromConfigErrors(t *testing.T) {
	if _, _, err := StaticFromConfig(nil); err == nil {
		t.Error("Expected error for nil config")
	}

	result, _, err := StaticFromConfig(&config.Config{})
	if err == nil {
		t.Error("Expected error for missing static section")
	}
	if len(result.Errors) != 1 || result.Errors[0].Type != "config_error" {
		t.Errorf("Expected config_error, got %+v", result.Errors)
	}

	logFile := testutil.WriteFile(t, "scenario.csv", testutil.ScenarioLog)
	manifestFile := testutil.WriteFile(t, "vars.txt", "no separator")
	result, _, err = StaticFromConfig(&config.Config{
		Static: &config.StaticConfig{LogFile: logFile, ManifestFile: manifestFile},
	})
	if !errors.Is(err, variable.ErrInvalidManifest) {
		t.Errorf("Expected invalid manifest error, got %v", err)
	}
	if len(result.Errors) != 1 || result.Errors[0].Type != "invalid_manifest" {
		t.Errorf("Expected invalid_manifest error entry, got %+v", result.Errors)
	}

	result, _, err = StaticFromConfig(&config.Config{
		Static: &config.StaticConfig{LogFile: logFile + ".gone", ManifestFile: manifestFile + ".gone"},
	})
	if err == nil {
		t.Error("Expected error for missing files")
	}
	if len(result.Errors) != 1 || result.Errors[0].Type != "parse_file" {
		t.Errorf("Expected parse_file error entry, got %+v", result.Errors)
	}
}

func TestSessionOptionsFromConfig(t *testing.T) {
	cfg, err := config.Parse(`
[global]
objectiveDomain = "obj"
[static]
timelinePercent = 5
[static.v]
key = "variable"
secondKey = "restartId"
`)
	if err != nil {
		t.Fatal(err)
	}
	opts := SessionOptionsFromConfig(cfg)
	if opts.ObjectiveDomain != "obj" || opts.TimelinePercent != 5 {
		t.Errorf("Unexpected options %+v", opts)
	}
	if g := opts.Views["v"]; g.Key != KeyVariable || g.SecondKey != KeyRestartID || g.LeftOnly {
		t.Errorf("Unexpected grouping %+v", g)
	}
	if opts := SessionOptionsFromConfig(nil); opts.Views != nil {
		t.Error("nil config selects the default views")
	}
}

func TestStaticOutputHasNoNaN(t *testing.T) {
	log := "id,parentId,depth,timestamp,label\n0,-1,abc,NaN,x_1==1\n1,0,,Inf,x_1==2\n"
	logFile := testutil.WriteFile(t, "nan.csv", log)
	manifestFile := testutil.WriteFile(t, "vars.txt", "x_1;")

	result, _, err := StaticFromConfig(&config.Config{
		Static: &config.StaticConfig{LogFile: logFile, ManifestFile: manifestFile},
	})
	if err != nil {
		t.Fatalf("StaticFromConfig failed: %v", err)
	}
	data, err := result.ToCompactJSON()
	if err != nil {
		t.Fatalf("Malformed numbers must not break serialization: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
}
