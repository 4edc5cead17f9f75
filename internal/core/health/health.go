// Package health exposes liveness and readiness handlers.
package health

import (
	"encoding/json"
	"net/http"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// StatsReporter surfaces engine state for the readiness payload.
type StatsReporter interface {
	CacheSize() int
}

func Readiness(sr StatsReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status     string `json:"status"`
			CacheCells int    `json:"cache_cells"`
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp{Status: "ready", CacheCells: sr.CacheSize()})
	}
}
