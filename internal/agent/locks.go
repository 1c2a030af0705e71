package agent

import "sync"

// convLocks serializes turns per conversation. A scheduled fire and an
// interactive message for the same conversation run one after the other
// instead of interleaving their histories.
type convLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newConvLocks() *convLocks {
	return &convLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for a conversation id and returns its unlock
func (c *convLocks) lock(id string) func() {
	c.mu.Lock()
	m, ok := c.locks[id]
	if !ok {
		m = &sync.Mutex{}
		c.locks[id] = m
	}
	c.mu.Unlock()

	m.Lock()
	return m.Unlock
}
