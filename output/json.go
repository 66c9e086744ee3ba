package output

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ChristianF88/searchviz/version"
)

// JSONOutput represents the complete analysis output structure
type JSONOutput struct {
	Metadata     Metadata      `json:"metadata"`
	General      General       `json:"general"`
	Totals       Totals        `json:"totals"`
	Forest       ForestSummary `json:"forest"`
	Aggregations []Aggregation `json:"aggregations"`
	Timeline     *Timeline     `json:"timeline,omitempty"`
	Grids        []Grid        `json:"grids,omitempty"`
	LiveStats    *LiveStats    `json:"live_stats,omitempty"`
	Warnings     []Warning     `json:"warnings"`
	Errors       []Error       `json:"errors"`

	// Mutex for thread-safe warning/error appending
	mu sync.Mutex `json:"-"`
}

// Metadata contains information about the analysis run
type Metadata struct {
	GeneratedAt  time.Time `json:"generated_at"`
	AnalysisType string    `json:"analysis_type"`
	Version      string    `json:"version"`
	SessionID    string    `json:"session_id,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
}

// General contains overall statistics and information
type General struct {
	LogFile         string  `json:"log_file,omitempty"`
	ManifestFile    string  `json:"manifest_file,omitempty"`
	ObjectiveDomain string  `json:"objective_domain"`
	TotalRecords    int     `json:"total_records"`
	Variables       int     `json:"variables"`
	VariableGroups  int     `json:"variable_groups"`
	Parsing         Parsing `json:"parsing"`
}

// Parsing contains parsing performance metrics
type Parsing struct {
	DurationMS    int64 `json:"duration_ms"`
	RatePerSecond int64 `json:"rate_per_second"`
	Rows          int   `json:"rows"`
	MissingIDs    int   `json:"missing_ids"`
	BadPayloads   int   `json:"bad_payloads"`
}

// Totals are the session wide denominators of every percentage.
type Totals struct {
	Nodes     int     `json:"nodes"`
	Time      float64 `json:"time"`
	Failures  int     `json:"failures"`
	Solutions int     `json:"solutions"`
}

// ForestSummary describes the linked search tree
type ForestSummary struct {
	Roots           int   `json:"roots"`
	Restarts        int   `json:"restarts"`
	MaxDepth        int   `json:"max_depth"`
	Leaves          int   `json:"leaves"`
	Dangling        int   `json:"dangling_parents"`
	DanglingNogoods int   `json:"dangling_nogoods"`
	Duplicates      int   `json:"duplicate_ids"`
	BuildTimeMS     int64 `json:"build_time_ms"`
}

// Aggregation is one configured view over the records
type Aggregation struct {
	Name       string                `json:"name"`
	Parameters AggregationParameters `json:"parameters"`
	Buckets    []Bucket              `json:"buckets"`
}

// AggregationParameters are the grouping options of a view
type AggregationParameters struct {
	Key       string `json:"key"`
	SecondKey string `json:"second_key,omitempty"`
	LeftOnly  bool   `json:"left_only"`
}

// Bucket holds the statistics of one key (or key pair)
type Bucket struct {
	Key                    string  `json:"key"`
	SecondKey              string  `json:"second_key,omitempty"`
	CountNodes             int     `json:"count_nodes"`
	CountLeftNodes         int     `json:"count_left_nodes"`
	PercentNodes           float64 `json:"percent_nodes"`
	AverageDepth           float64 `json:"average_depth"`
	AverageElapsed         float64 `json:"average_elapsed"`
	SumElapsed             float64 `json:"sum_elapsed"`
	PercentTime            float64 `json:"percent_time"`
	FailureCount           int     `json:"failure_count"`
	PercentFailuresOfTotal float64 `json:"percent_failures_of_total"`
	PercentFailedOfBucket  float64 `json:"percent_failed_of_bucket"`
}

// Timeline is the search split into equally sized slices of nodes
type Timeline struct {
	Percent float64          `json:"percent"`
	Buckets []TimelineBucket `json:"buckets"`
}

// TimelineBucket summarizes one slice of the timeline
type TimelineBucket struct {
	Index                  int     `json:"index"`
	Count                  int     `json:"count"`
	MedianDecisionLevel    float64 `json:"median_decision_level"`
	MinDepth               float64 `json:"min_depth"`
	MaxDepth               float64 `json:"max_depth"`
	MedianDepth            float64 `json:"median_depth"`
	MedianNogoodLength     float64 `json:"median_nogood_length"`
	MedianBackjumpDistance float64 `json:"median_backjump_distance"`
	Nogoods                int     `json:"nogoods"`
	Solutions              int     `json:"solutions"`
	PercentLeftNodes       float64 `json:"percent_left_nodes"`
	PercentTime            float64 `json:"percent_time"`
	FutureNogoods          int     `json:"future_nogoods"`
}

// Grid is the occupancy of an array variable group
type Grid struct {
	Group   string     `json:"group"`
	Restart *int       `json:"restart,omitempty"`
	Rows    int        `json:"rows"`
	Cols    int        `json:"cols"`
	Max     int        `json:"max"`
	Cells   []GridCell `json:"cells"`
}

// GridCell is one declared variable of a grid
type GridCell struct {
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Variable  string `json:"variable"`
	Count     int    `json:"count"`
	CountLeft int    `json:"count_left"`
	Failures  int    `json:"failures"`
}

// Warning represents a warning message
type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// Error represents an error message
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// NewJSONOutput creates a new JSONOutput with default metadata
func NewJSONOutput(analysisType string, startTime time.Time) *JSONOutput {
	return &JSONOutput{
		Metadata: Metadata{
			GeneratedAt:  time.Now().UTC(),
			AnalysisType: analysisType,
			Version:      version.Version,
			DurationMS:   time.Since(startTime).Milliseconds(),
		},
		Aggregations: []Aggregation{},
		Warnings:     []Warning{},
		Errors:       []Error{},
	}
}

// ToJSON converts the output to pretty-printed JSON
func (j *JSONOutput) ToJSON() ([]byte, error) {
	return json.MarshalIndent(j, "", "  ")
}

// ToCompactJSON converts the output to compact JSON
func (j *JSONOutput) ToCompactJSON() ([]byte, error) {
	return json.Marshal(j)
}

// AddWarning adds a warning to the output (thread-safe)
func (j *JSONOutput) AddWarning(warningType, message string, count int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Warnings = append(j.Warnings, Warning{
		Type:    warningType,
		Message: message,
		Count:   count,
	})
}

// AddError adds an error to the output (thread-safe)
func (j *JSONOutput) AddError(errorType, message string, count int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Errors = append(j.Errors, Error{
		Type:    errorType,
		Message: message,
		Count:   count,
	})
}

// Aggregation returns the view with the given name.
func (j *JSONOutput) Aggregation(name string) (*Aggregation, bool) {
	for i := range j.Aggregations {
		if j.Aggregations[i].Name == name {
			return &j.Aggregations[i], true
		}
	}
	return nil, false
}

// LiveStats contains statistics for live mode
type LiveStats struct {
	WindowSize     int   `json:"window_size"`
	ProcessedBatch int   `json:"processed_batch"`
	Reparented     int   `json:"reparented"`
	Evicted        int   `json:"evicted"`
	LoopDuration   int64 `json:"loop_duration_ms"`
	BuildDuration  int64 `json:"build_duration_ms"`
}

// UpdateDuration updates the duration in metadata
func (j *JSONOutput) UpdateDuration(startTime time.Time) {
	j.Metadata.DurationMS = time.Since(startTime).Milliseconds()
}
