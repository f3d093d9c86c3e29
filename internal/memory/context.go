package memory

import (
	"encoding/json"
	"sync"
	"time"

	"relay/internal/domain"
)

// Context holds one session's bounded conversation history and scratch
// memory. History is append-only until FIFO eviction; turn indices keep
// increasing across evictions.
type Context struct {
	mu       sync.Mutex
	bound    int
	nextTurn int64
	entries  []domain.ContextEntry
	scratch  map[string]any
}

func NewContext(historyBound int) *Context {
	if historyBound <= 0 {
		historyBound = 50
	}
	return &Context{
		bound:   historyBound,
		scratch: make(map[string]any),
	}
}

// Append records an entry and evicts the oldest entries once the bound is
// exceeded. It always succeeds.
func (c *Context) Append(role domain.Role, content string, payload json.RawMessage) domain.ContextEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := domain.ContextEntry{
		Turn:      c.nextTurn,
		Role:      role,
		Content:   content,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	c.nextTurn++
	c.entries = append(c.entries, entry)
	if over := len(c.entries) - c.bound; over > 0 {
		c.entries = append([]domain.ContextEntry(nil), c.entries[over:]...)
	}
	return entry
}

// RecentHistory returns the last n entries in chronological order. n <= 0
// returns everything retained.
func (c *Context) RecentHistory(n int) []domain.ContextEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := 0
	if n > 0 && len(c.entries) > n {
		start = len(c.entries) - n
	}
	out := make([]domain.ContextEntry, len(c.entries)-start)
	copy(out, c.entries[start:])
	return out
}

func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Context) GetScratch(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.scratch[key]
	return v, ok
}

// SetScratch stores a value under key, last writer wins.
func (c *Context) SetScratch(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scratch[key] = value
}

func (c *Context) DeleteScratch(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scratch, key)
}

// Reset clears history and scratch memory under one lock, so no caller can
// observe one cleared without the other. Turn numbering restarts.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.scratch = make(map[string]any)
	c.nextTurn = 0
}
