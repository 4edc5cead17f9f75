package kafkaconsumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/olindqvist/terrain-grid-cache/internal/core/model"
	"github.com/olindqvist/terrain-grid-cache/internal/invalidation"
)

type fakeTarget struct {
	evicted []string
	cleared int
}

func (f *fakeTarget) EvictGridFromCache(cellID string) { f.evicted = append(f.evicted, cellID) }
func (f *fakeTarget) ClearCache()                      { f.cleared++ }

func (f *fakeTarget) CellsCovering(bb model.BBox) []string {
	// two fixed cells regardless of the box; geometry is the grid
	// package's concern, tested there
	return []string{"G_000_000", "G_000_001"}
}

func msgFor(t *testing.T, ev invalidation.Event) *sarama.ConsumerMessage {
	t.Helper()
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return &sarama.ConsumerMessage{Value: raw, Topic: "terrain-invalidation"}
}

func newTestConsumer(target CacheInvalidator) *Consumer {
	return New(Config{DedupeSize: 16}, nil, target)
}

func TestProcessOne_EvictCell(t *testing.T) {
	target := &fakeTarget{}
	c := newTestConsumer(target)

	ev := invalidation.Event{Version: 1, Op: invalidation.OpEvict, TS: time.Now(), CellID: "G_090_040"}
	if err := c.ProcessOne(context.Background(), msgFor(t, ev)); err != nil {
		t.Fatal(err)
	}
	if len(target.evicted) != 1 || target.evicted[0] != "G_090_040" {
		t.Fatalf("evicted = %v, want [G_090_040]", target.evicted)
	}
}

func TestProcessOne_EvictBBox(t *testing.T) {
	target := &fakeTarget{}
	c := newTestConsumer(target)

	ev := invalidation.Event{Version: 1, Op: invalidation.OpEvict, TS: time.Now(),
		BBox: &invalidation.BBox{MinLon: 116.0, MinLat: 39.0, MaxLon: 116.1, MaxLat: 39.1}}
	if err := c.ProcessOne(context.Background(), msgFor(t, ev)); err != nil {
		t.Fatal(err)
	}
	if len(target.evicted) != 2 {
		t.Fatalf("evicted = %v, want both covering cells", target.evicted)
	}
}

func TestProcessOne_EvictAll(t *testing.T) {
	target := &fakeTarget{}
	c := newTestConsumer(target)

	ev := invalidation.Event{Version: 1, Op: invalidation.OpEvictAll, TS: time.Now()}
	if err := c.ProcessOne(context.Background(), msgFor(t, ev)); err != nil {
		t.Fatal(err)
	}
	if target.cleared != 1 {
		t.Fatalf("cleared = %d, want 1", target.cleared)
	}
}

func TestProcessOne_DuplicateSuppressed(t *testing.T) {
	target := &fakeTarget{}
	c := newTestConsumer(target)

	ev := invalidation.Event{Version: 1, Op: invalidation.OpEvict, TS: time.Unix(100, 0).UTC(), CellID: "G_001_001"}
	m := msgFor(t, ev)
	for i := 0; i < 3; i++ {
		if err := c.ProcessOne(context.Background(), m); err != nil {
			t.Fatal(err)
		}
	}
	if len(target.evicted) != 1 {
		t.Fatalf("evicted %d times, want 1 (duplicates suppressed)", len(target.evicted))
	}
}

func TestProcessOne_MalformedSkippedNotFatal(t *testing.T) {
	target := &fakeTarget{}
	c := newTestConsumer(target)

	bad := []*sarama.ConsumerMessage{
		{Value: []byte("{not json")},
		msgFor(t, invalidation.Event{Version: 7, Op: invalidation.OpEvict, TS: time.Now(), CellID: "G_000_000"}),
	}
	for _, m := range bad {
		if err := c.ProcessOne(context.Background(), m); err != nil {
			t.Fatalf("malformed event must be skipped, got err %v", err)
		}
	}
	if len(target.evicted) != 0 || target.cleared != 0 {
		t.Fatal("malformed events must not mutate the cache")
	}
}
