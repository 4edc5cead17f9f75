// Package kafkaconsumer drives grid-cache eviction from invalidation
// events on a Kafka topic.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/olindqvist/terrain-grid-cache/internal/core/model"
	"github.com/olindqvist/terrain-grid-cache/internal/core/observability"
	"github.com/olindqvist/terrain-grid-cache/internal/invalidation"
)

// CacheInvalidator is the slice of the engine the consumer needs.
type CacheInvalidator interface {
	EvictGridFromCache(cellID string)
	ClearCache()
	CellsCovering(bb model.BBox) []string
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	target CacheInvalidator
	dedupe *payloadDedupe
}

func New(cfg Config, logger *slog.Logger, target CacheInvalidator) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		target: target,
		dedupe: newPayloadDedupe(cfg.DedupeSize),
	}
}

// Start joins the consumer group and processes events until ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	if c.target == nil {
		return errors.New("kafkaconsumer: missing cache target")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne applies a single event. Malformed events are counted and
// skipped so one bad producer cannot wedge the partition; duplicates
// (identical payload redelivered) are suppressed.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncInvalidation("invalid")
		c.logger.Error("invalidation decode failed", "err", err, "offset", msg.Offset)
		return nil
	}
	if err := ev.Validate(); err != nil {
		observability.IncInvalidation("invalid")
		c.logger.Error("invalidation event rejected", "err", err, "offset", msg.Offset)
		return nil
	}

	if !c.dedupe.first(msg.Value) {
		observability.IncInvalidation("skipped_dup")
		return nil
	}

	switch {
	case ev.Op == invalidation.OpEvictAll:
		c.target.ClearCache()
	case ev.CellID != "":
		c.target.EvictGridFromCache(ev.CellID)
	default:
		bb := model.BBox{
			MinLon: ev.BBox.MinLon, MinLat: ev.BBox.MinLat,
			MaxLon: ev.BBox.MaxLon, MaxLat: ev.BBox.MaxLat,
		}
		for _, cell := range c.target.CellsCovering(bb) {
			c.target.EvictGridFromCache(cell)
		}
	}

	observability.IncInvalidation("applied")
	c.logger.Debug("invalidation applied", "op", ev.Op, "cell", ev.CellID)
	return nil
}

// payloadDedupe suppresses redeliveries by remembering digests of
// recently applied payloads.
type payloadDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[uint64, struct{}]
}

func newPayloadDedupe(size int) *payloadDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[uint64, struct{}](size)
	return &payloadDedupe{lru: c}
}

// first reports whether this payload has not been seen recently.
func (d *payloadDedupe) first(payload []byte) bool {
	sum := xxhash.Sum64(payload)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, seen := d.lru.Get(sum); seen {
		return false
	}
	d.lru.Add(sum, struct{}{})
	return true
}
