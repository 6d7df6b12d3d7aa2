package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated entries. The kafka producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // max distinct entries before flush
	Topic          string
	Service        string // used as the message key
	Publisher      Publisher
	// SampleField names the field whose distinct values are kept per entry,
	// e.g. product_id. At most SampleLimit values are kept.
	SampleField string
	SampleLimit int
	// PublishTimeout bounds one batch publish.
	PublishTimeout time.Duration
}

// AggregatedLogEntry is one digest line: every occurrence of the same level,
// message and call site within a flush window.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	Fields    map[string]interface{} `json:"fields"` // last occurrence
	Samples   []string               `json:"samples,omitempty"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

type entryKey struct {
	level, message, caller string
}

type LogCollector struct {
	config *CollectionConfig
	mu     sync.Mutex
	logMap map[entryKey]*AggregatedLogEntry
	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	if config.SampleField == "" {
		config.SampleField = "product_id"
	}
	if config.SampleLimit <= 0 {
		config.SampleLimit = 10
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	collector := &LogCollector{
		config: config,
		logMap: make(map[entryKey]*AggregatedLogEntry),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}

	collector.wg.Add(1)
	go collector.periodicFlush()

	return collector
}

func (d *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := d.now()
	key := entryKey{level: level, message: message, caller: caller}

	d.mu.Lock()
	entry, ok := d.logMap[key]
	if !ok {
		entry = &AggregatedLogEntry{Level: level, Message: message, Caller: caller, FirstSeen: now}
		d.logMap[key] = entry
	}
	entry.Count++
	entry.LastSeen = now
	entry.Fields = fields
	if v, ok := fields[d.config.SampleField]; ok {
		entry.Samples = addSample(entry.Samples, fmt.Sprint(v), d.config.SampleLimit)
	}

	var batch []AggregatedLogEntry
	if len(d.logMap) >= d.config.CountThreshold {
		batch = d.drainLocked()
	}
	d.mu.Unlock()

	if batch != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.publish(batch)
		}()
	}
}

func addSample(samples []string, v string, limit int) []string {
	if len(samples) >= limit {
		return samples
	}
	for _, s := range samples {
		if s == v {
			return samples
		}
	}
	return append(samples, v)
}

func (d *LogCollector) periodicFlush() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Flush()
		case <-d.ctx.Done():
			d.Flush()
			return
		}
	}
}

// Flush publishes everything collected so far and blocks until it is sent.
func (d *LogCollector) Flush() {
	d.mu.Lock()
	batch := d.drainLocked()
	d.mu.Unlock()
	if batch != nil {
		d.publish(batch)
	}
}

// drainLocked empties the map and returns its entries, most frequent first.
func (d *LogCollector) drainLocked() []AggregatedLogEntry {
	if len(d.logMap) == 0 {
		return nil
	}
	logs := make([]AggregatedLogEntry, 0, len(d.logMap))
	for _, entry := range d.logMap {
		logs = append(logs, *entry)
	}
	d.logMap = make(map[entryKey]*AggregatedLogEntry)
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].Count != logs[j].Count {
			return logs[i].Count > logs[j].Count
		}
		return logs[i].FirstSeen.Before(logs[j].FirstSeen)
	})
	return logs
}

func (d *LogCollector) publish(batch []AggregatedLogEntry) {
	if d.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.config.PublishTimeout)
	defer cancel()

	if err := d.config.Publisher.Publish(ctx, d.config.Topic, []byte(d.config.Service), batch); err != nil {
		// The logger cannot log its own shipping failures.
		fmt.Fprintf(os.Stderr, "failed to send aggregated logs: %v\n", err)
	}
}

// Close stops the flush loop after a final synchronous flush.
func (d *LogCollector) Close() {
	d.cancel()
	d.wg.Wait()
}
