package broker

import (
	"sync"

	"github.com/vibenet/medium/internal/wave"
)

// channelEntry is one registry slot: a named channel with its bounded
// broadcast fan-out to zero or more subscriberQueues.
type channelEntry struct {
	name string

	mu          sync.RWMutex
	subscribers map[uint64]*subscriberQueue
	nextID      uint64
	bufferSize  int

	bridgeStarted bool
}

func newChannelEntry(name string, bufferSize int) *channelEntry {
	return &channelEntry{
		name:        name,
		subscribers: make(map[uint64]*subscriberQueue),
		bufferSize:  bufferSize,
	}
}

// subscribe registers a fresh subscriberQueue and returns a Subscription
// bound to it.
func (c *channelEntry) subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	q := newSubscriberQueue(c.bufferSize)
	c.subscribers[id] = q

	return &Subscription{channel: c.name, entry: c, id: id, queue: q}
}

func (c *channelEntry) unsubscribe(id uint64) {
	c.mu.Lock()
	q, ok := c.subscribers[id]
	delete(c.subscribers, id)
	c.mu.Unlock()

	if ok {
		q.close()
	}
}

// push fans w out to every current subscriber. It returns the number of
// subscribers w was delivered to; 0 means the push had nowhere to go.
func (c *channelEntry) push(w wave.Wave) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, q := range c.subscribers {
		q.push(w)
	}
	return len(c.subscribers)
}

func (c *channelEntry) subscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers)
}

// Registry is the lazily-populated map of channel name to channelEntry.
// Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	channels   map[string]*channelEntry
	bufferSize int
}

// NewRegistry builds an empty registry whose entries use bufferSize as
// their per-subscriber queue capacity.
func NewRegistry(bufferSize int) *Registry {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Registry{channels: make(map[string]*channelEntry), bufferSize: bufferSize}
}

// getOrCreate returns the entry for name, creating it if absent. created
// reports whether this call created it.
func (r *Registry) getOrCreate(name string) (entry *channelEntry, created bool) {
	r.mu.RLock()
	entry, ok := r.channels[name]
	r.mu.RUnlock()
	if ok {
		return entry, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok = r.channels[name]; ok {
		return entry, false
	}
	entry = newChannelEntry(name, r.bufferSize)
	r.channels[name] = entry
	return entry, true
}

// get returns the entry for name without creating it.
func (r *Registry) get(name string) (*channelEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.channels[name]
	return entry, ok
}

// Remove deletes the entry for name from the registry without touching its
// subscriber queues. Existing Subscriptions on the removed channel are left
// open: they can still drain whatever was already buffered, but since the
// entry is no longer reachable from the registry they receive no new waves
// and are never explicitly closed. Reports false if name was not present.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.channels[name]
	if ok {
		delete(r.channels, name)
	}
	return ok
}

// Clear drops every registry entry. As with Remove, existing Subscriptions
// are left open but orphaned rather than force-closed.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = make(map[string]*channelEntry)
}

// ActiveChannels returns a snapshot of the current channel names.
func (r *Registry) ActiveChannels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}

// Len returns the current number of registry entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
