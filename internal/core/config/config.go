package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/olindqvist/terrain-grid-cache/internal/core/model"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool

	DBPath string

	Extent     model.Extent
	CellSize   float64
	CacheCells int

	Invalidation InvalidationCfg
}

func FromEnv() Config {
	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),

		DBPath: getenv("DB_PATH", "./data/terrain"),

		Extent: model.Extent{
			MinLon: getfloat("EXTENT_MIN_LON", 116.0),
			MinLat: getfloat("EXTENT_MIN_LAT", 39.0),
			MaxLon: getfloat("EXTENT_MAX_LON", 117.5),
			MaxLat: getfloat("EXTENT_MAX_LAT", 41.0),
		},
		CellSize:   getfloat("CELL_SIZE_DEG", 0.01),
		CacheCells: getint("CACHE_CELLS", 1000),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "terrain-invalidation"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "grid-cache-invalidator"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
