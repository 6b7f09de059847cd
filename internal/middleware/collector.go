// Package middleware provides event collectors that batch updates
// before delivery. The v2 event stream uses one to coalesce rapid
// state changes into single frames.
package middleware

import (
	"sync"
	"time"
)

// FlushFunc receives the accumulated batch when a collector flushes.
type FlushFunc func(events []map[string]any)

// Collector accumulates events and flushes them per its strategy.
type Collector interface {
	AddEvent(event map[string]any)
	Close()
}

// IntervalCollector flushes the batch a fixed delay after the first
// event arrives. Events added during the window ride along.
type IntervalCollector struct {
	mu       sync.Mutex
	events   []map[string]any
	interval time.Duration
	timer    *time.Timer
	armed    bool
	onFlush  FlushFunc
}

func NewIntervalCollector(interval time.Duration, onFlush FlushFunc) *IntervalCollector {
	return &IntervalCollector{
		interval: interval,
		onFlush:  onFlush,
	}
}

func (c *IntervalCollector) AddEvent(event map[string]any) {
	c.mu.Lock()
	c.events = append(c.events, event)
	if !c.armed {
		c.timer = time.AfterFunc(c.interval, c.flush)
		c.armed = true
	}
	c.mu.Unlock()
}

func (c *IntervalCollector) flush() {
	c.mu.Lock()
	events := c.events
	c.events = nil
	c.armed = false
	c.mu.Unlock()

	if len(events) > 0 {
		c.onFlush(events)
	}
}

// Close stops a pending flush timer. Buffered events are dropped.
func (c *IntervalCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}
