package main

import (
	"net/http"
	"strings"

	"orderbridge/internal/metrics"
	"orderbridge/internal/tracing"

	"github.com/sirupsen/logrus"
)

// handleMetrics serves the in-memory registry. ?prefix= keeps only series
// whose key starts with the given metric name prefix.
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := s.deps.Registry.GetAllMetrics()
		if prefix := r.URL.Query().Get("prefix"); prefix != "" {
			snapshot = filterSnapshot(snapshot, prefix)
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, snapshot)

		s.logger.WithFields(logrus.Fields{
			"request_id": tracing.GetRequestID(r.Context()),
			"series":     len(snapshot.Counters) + len(snapshot.Gauges) + len(snapshot.Timers),
		}).Debug("Served metrics snapshot")
	}
}

func filterSnapshot(snapshot metrics.Snapshot, prefix string) metrics.Snapshot {
	snapshot.Counters = filterKeys(snapshot.Counters, prefix)
	snapshot.Gauges = filterKeys(snapshot.Gauges, prefix)
	snapshot.Timers = filterKeys(snapshot.Timers, prefix)
	return snapshot
}

func filterKeys[V any](series map[string]V, prefix string) map[string]V {
	kept := make(map[string]V)
	for key, v := range series {
		if strings.HasPrefix(key, prefix) {
			kept[key] = v
		}
	}
	return kept
}
