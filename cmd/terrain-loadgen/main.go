// terrain-loadgen replays a configurable mix of point writes, point
// reads and range queries against a running terrain server and prints
// throughput per operation.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"
)

type stats struct {
	ops      int
	errors   int
	duration time.Duration
}

func (s stats) String() string {
	if s.duration <= 0 {
		return "no samples"
	}
	rate := float64(s.ops) / s.duration.Seconds()
	return fmt.Sprintf("%d ops (%d errors) in %s, %.1f ops/s", s.ops, s.errors, s.duration.Round(time.Millisecond), rate)
}

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8090", "terrain server base URL")
		puts      = flag.Int("puts", 10000, "number of point writes")
		gets      = flag.Int("gets", 10000, "number of point reads")
		queries   = flag.Int("queries", 100, "number of range queries")
		seed      = flag.Int64("seed", 1, "workload RNG seed")
		minLon    = flag.Float64("min-lon", 116.0, "extent min longitude")
		minLat    = flag.Float64("min-lat", 39.0, "extent min latitude")
		maxLon    = flag.Float64("max-lon", 117.5, "extent max longitude")
		maxLat    = flag.Float64("max-lat", 41.0, "extent max latitude")
		querySpan = flag.Float64("query-span", 0.05, "range query side length in degrees")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 10 * time.Second}

	randLon := func() float64 { return *minLon + rng.Float64()*(*maxLon-*minLon) }
	randLat := func() float64 { return *minLat + rng.Float64()*(*maxLat-*minLat) }

	fmt.Printf("loadgen against %s (seed %d)\n", *baseURL, *seed)

	written := make([][2]float64, 0, *puts)
	putStats := run(*puts, func(i int) error {
		lon, lat := randLon(), randLat()
		written = append(written, [2]float64{lon, lat})
		body, _ := json.Marshal(map[string]any{
			"lon": lon, "lat": lat,
			"value": fmt.Sprintf("elev=%.2f", rng.Float64()*8848),
		})
		req, err := http.NewRequest(http.MethodPut, *baseURL+"/points", bytes.NewReader(body))
		if err != nil {
			return err
		}
		return expect(client, req, http.StatusNoContent)
	})
	fmt.Println("puts:   ", putStats)

	getStats := run(*gets, func(i int) error {
		var lon, lat float64
		if len(written) > 0 && rng.Intn(2) == 0 {
			p := written[rng.Intn(len(written))]
			lon, lat = p[0], p[1]
		} else {
			lon, lat = randLon(), randLat()
		}
		url := fmt.Sprintf("%s/points?lon=%v&lat=%v", *baseURL, lon, lat)
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	})
	fmt.Println("gets:   ", getStats)

	queryStats := run(*queries, func(i int) error {
		lon := *minLon + rng.Float64()*(*maxLon-*minLon-*querySpan)
		lat := *minLat + rng.Float64()*(*maxLat-*minLat-*querySpan)
		url := fmt.Sprintf("%s/query?bbox=%v,%v,%v,%v",
			*baseURL, lon, lat, lon+*querySpan, lat+*querySpan)
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		return expect(client, req, http.StatusOK)
	})
	fmt.Println("queries:", queryStats)

	if putStats.errors+getStats.errors+queryStats.errors > 0 {
		os.Exit(1)
	}
}

func run(n int, op func(i int) error) stats {
	start := time.Now()
	s := stats{ops: n}
	for i := 0; i < n; i++ {
		if err := op(i); err != nil {
			s.errors++
			if s.errors <= 5 {
				fmt.Fprintln(os.Stderr, "op error:", err)
			}
		}
	}
	s.duration = time.Since(start)
	return s
}

func expect(client *http.Client, req *http.Request, status int) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != status {
		return fmt.Errorf("status %d, want %d", resp.StatusCode, status)
	}
	return nil
}
