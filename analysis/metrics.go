package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "searchviz_session_build_duration_seconds",
		Help:    "Time to parse, link and aggregate one session",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	sessionsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchviz_sessions_total",
		Help: "Sessions built, by outcome",
	}, []string{"outcome"})

	recordsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "searchviz_records_built_total",
		Help: "Search nodes linked into forests, including synthetic roots",
	})

	inputAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchviz_input_anomalies_total",
		Help: "Tolerated input problems, by kind",
	}, []string{"kind"})
)

func observeSession(s *Session) {
	sessionBuildDuration.Observe(s.BuildDuration.Seconds())
	sessionsBuilt.WithLabelValues("ok").Inc()
	recordsBuilt.Add(float64(len(s.Records)))
	inputAnomalies.WithLabelValues("dangling_parent").Add(float64(s.Forest.Dangling))
	inputAnomalies.WithLabelValues("dangling_nogood").Add(float64(s.Forest.DanglingNogoods))
	inputAnomalies.WithLabelValues("duplicate_id").Add(float64(s.Forest.Duplicates))
	if s.Stats != nil {
		inputAnomalies.WithLabelValues("bad_payload").Add(float64(s.Stats.BadPayloads))
		inputAnomalies.WithLabelValues("missing_id").Add(float64(s.Stats.MissingIDs))
	}
}

func observeFailure() {
	sessionsBuilt.WithLabelValues("error").Inc()
}
