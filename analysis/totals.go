package analysis

import "github.com/ChristianF88/searchviz/ingestor"

// Totals are the session wide denominators used by every percentage.
type Totals struct {
	Nodes     int     // records including the synthetic root
	Time      float64 // largest timestamp
	Failures  int     // status failed
	Solutions int     // status solved
}

// ComputeTotals scans records once. Malformed timestamps are ignored.
func ComputeTotals(records []*ingestor.Record) Totals {
	t := Totals{Nodes: len(records)}
	for _, rec := range records {
		if finite(rec.Timestamp) && rec.Timestamp > t.Time {
			t.Time = rec.Timestamp
		}
		switch rec.Status {
		case ingestor.StatusFailed:
			t.Failures++
		case ingestor.StatusSolved:
			t.Solutions++
		}
	}
	return t
}
