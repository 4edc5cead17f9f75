// Package router maps the engine's operations onto the HTTP surface.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olindqvist/terrain-grid-cache/internal/core/model"
	"github.com/olindqvist/terrain-grid-cache/internal/core/observability"
	"github.com/olindqvist/terrain-grid-cache/internal/engine"
)

// Engine is the surface the handlers drive; satisfied by *engine.Engine.
type Engine interface {
	Put(lon, lat float64, value string, durable bool) error
	Get(lon, lat float64) (string, bool, error)
	Delete(lon, lat float64, durable bool) error
	Exists(lon, lat float64) (bool, error)
	BatchPut(points []model.PointValue, durable bool) error
	RangeQuery(bb model.BBox, visit func(lon, lat float64, value string)) error
	PreloadGrid(cellID string) error
	EvictGridFromCache(cellID string)
	ClearCache()
	CacheSize() int
	ComputeGridID(lon, lat float64) string
}

type Router struct {
	eng    Engine
	logger *slog.Logger
}

func New(eng Engine, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{eng: eng, logger: logger}
}

func (rt *Router) Mount(r chi.Router) {
	r.Put("/points", rt.instrument("/points", rt.putPoint))
	r.Get("/points", rt.instrument("/points", rt.getPoint))
	r.Delete("/points", rt.instrument("/points", rt.deletePoint))
	r.Get("/points/exists", rt.instrument("/points/exists", rt.pointExists))
	r.Post("/points/batch", rt.instrument("/points/batch", rt.batchPut))
	r.Get("/query", rt.instrument("/query", rt.rangeQuery))
	r.Get("/cells", rt.instrument("/cells", rt.computeCell))
	r.Post("/cache/{cellID}/preload", rt.instrument("/cache/preload", rt.preloadCell))
	r.Delete("/cache/{cellID}", rt.instrument("/cache/evict", rt.evictCell))
	r.Delete("/cache", rt.instrument("/cache", rt.clearCache))
	r.Get("/cache/stats", rt.instrument("/cache/stats", rt.cacheStats))
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (rt *Router) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type pointBody struct {
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`
	Value   string  `json:"value"`
	Durable bool    `json:"durable"`
}

type batchBody struct {
	Durable bool               `json:"durable"`
	Points  []model.PointValue `json:"points"`
}

func (rt *Router) putPoint(w http.ResponseWriter, r *http.Request) {
	var body pointBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if err := rt.eng.Put(body.Lon, body.Lat, body.Value, body.Durable); err != nil {
		rt.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getPoint(w http.ResponseWriter, r *http.Request) {
	lon, lat, err := coordParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	v, ok, err := rt.eng.Get(lon, lat)
	if err != nil {
		rt.writeEngineError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("point not found"))
		return
	}
	writeJSON(w, http.StatusOK, model.PointValue{Lon: lon, Lat: lat, Value: v})
}

func (rt *Router) deletePoint(w http.ResponseWriter, r *http.Request) {
	lon, lat, err := coordParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	durable := r.URL.Query().Get("durable") == "true"
	if err := rt.eng.Delete(lon, lat, durable); err != nil {
		rt.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) pointExists(w http.ResponseWriter, r *http.Request) {
	lon, lat, err := coordParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ok, err := rt.eng.Exists(lon, lat)
	if err != nil {
		rt.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": ok})
}

func (rt *Router) batchPut(w http.ResponseWriter, r *http.Request) {
	var body batchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if len(body.Points) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("points must be non-empty"))
		return
	}
	if err := rt.eng.BatchPut(body.Points, body.Durable); err != nil {
		rt.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"written": len(body.Points)})
}

func (rt *Router) rangeQuery(w http.ResponseWriter, r *http.Request) {
	bb, err := parseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var pts []model.PointValue
	err = rt.eng.RangeQuery(bb, func(lon, lat float64, value string) {
		pts = append(pts, model.PointValue{Lon: lon, Lat: lat, Value: value})
	})
	if err != nil {
		rt.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Count  int                `json:"count"`
		Points []model.PointValue `json:"points"`
	}{Count: len(pts), Points: pts})
}

func (rt *Router) computeCell(w http.ResponseWriter, r *http.Request) {
	lon, lat, err := coordParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cell_id": rt.eng.ComputeGridID(lon, lat)})
}

func (rt *Router) preloadCell(w http.ResponseWriter, r *http.Request) {
	cellID := chi.URLParam(r, "cellID")
	if err := rt.eng.PreloadGrid(cellID); err != nil {
		rt.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) evictCell(w http.ResponseWriter, r *http.Request) {
	rt.eng.EvictGridFromCache(chi.URLParam(r, "cellID"))
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) clearCache(w http.ResponseWriter, r *http.Request) {
	rt.eng.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"cells": rt.eng.CacheSize()})
}

// writeEngineError translates the engine's error taxonomy onto status
// codes: bounds violations are the client's fault, malformed persisted
// keys and store failures are ours.
func (rt *Router) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case engine.IsOutOfBounds(err):
		writeError(w, http.StatusBadRequest, err)
	case engine.IsMalformedKey(err), errors.Is(err, engine.ErrStore):
		rt.logger.ErrorContext(r.Context(), "engine failure", "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal storage error"))
	default:
		rt.logger.ErrorContext(r.Context(), "unexpected engine error", "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func coordParams(r *http.Request) (lon, lat float64, err error) {
	lon, err = parseFloat(r.URL.Query().Get("lon"))
	if err != nil {
		return 0, 0, fmt.Errorf("lon: %w", err)
	}
	lat, err = parseFloat(r.URL.Query().Get("lat"))
	if err != nil {
		return 0, 0, fmt.Errorf("lat: %w", err)
	}
	return lon, lat, nil
}

func parseBBox(raw string) (model.BBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return model.BBox{}, errors.New("bbox: expected 4 comma-separated values minLon,minLat,maxLon,maxLat")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := parseFloat(p)
		if err != nil {
			return model.BBox{}, fmt.Errorf("bbox[%d]: %w", i, err)
		}
		vals[i] = f
	}
	bb := model.BBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}
	if bb.MaxLon <= bb.MinLon || bb.MaxLat <= bb.MinLat {
		return model.BBox{}, errors.New("bbox: max must exceed min")
	}
	return bb, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float %q", v)
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
