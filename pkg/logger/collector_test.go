package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	topics  []string
	keys    []string
	batches [][]AggregatedLogEntry
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, string(key))
	p.batches = append(p.batches, value.([]AggregatedLogEntry))
	return nil
}

func (p *recordingPublisher) snapshot() [][]AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]AggregatedLogEntry(nil), p.batches...)
}

func TestCollector_GroupsByMessageAndSamplesProducts(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "pricedrop.logs",
		Service:        "pricedrop",
		Publisher:      pub,
		SampleLimit:    2,
	})
	defer c.Close()

	for _, id := range []string{"p1", "p2", "p1", "p3"} {
		c.AddLog("warn", "model unavailable, using heuristic", map[string]interface{}{"product_id": id}, "usecase/x.go:1")
	}
	c.AddLog("warn", "prediction not persisted", map[string]interface{}{"product_id": "p9"}, "usecase/x.go:2")

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	batch := pub.snapshot()[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "model unavailable, using heuristic", batch[0].Message, "most frequent first")
	assert.Equal(t, 4, batch[0].Count)
	assert.Equal(t, []string{"p1", "p2"}, batch[0].Samples)
	assert.Equal(t, "p3", batch[0].Fields["product_id"], "fields of the last occurrence")
	assert.Equal(t, 1, batch[1].Count)
	assert.Equal(t, []string{"pricedrop.logs"}, pub.topics)
	assert.Equal(t, []string{"pricedrop"}, pub.keys)
}

func TestCollector_CloseFlushesSynchronously(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "pricedrop.logs",
		Publisher:      pub,
	})

	c.AddLog("error", "boom", nil, "x.go:1")
	c.Close()

	require.Len(t, pub.snapshot(), 1)
	assert.Equal(t, 1, pub.snapshot()[0][0].Count)
}

func TestCollector_FlushOnEmptyIsNoop(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, Publisher: pub})
	c.Flush()
	c.Close()
	assert.Empty(t, pub.snapshot())
}

func TestLogger_ErrorAndWarnFeedCollector(t *testing.T) {
	pub := &recordingPublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "t", Publisher: pub})
	defer l.RemoveCollector()

	l.Info("ignored")
	l.Warn("slow model", Float64("seconds", 2.5))
	l.Error("persist failed", String("product_id", "p1"))

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Len(t, pub.snapshot()[0], 2)
}
