package core

import (
	"sort"
	"sync"
)

// Registry maps channel names to channels. Names are matched exactly.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// Get looks up a channel by name.
func (r *Registry) Get(name string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// GetOrCreate returns the named channel, creating it with topic when absent.
// The boolean is true when the channel was created by this call.
func (r *Registry) GetOrCreate(name, topic string) (*Channel, bool) {
	if ch, ok := r.Get(name); ok {
		return ch, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		return ch, false
	}
	ch := NewChannel(name, topic)
	r.channels[name] = ch
	return ch, true
}

// List returns all channels sorted by name.
func (r *Registry) List() []*Channel {
	r.mu.RLock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
