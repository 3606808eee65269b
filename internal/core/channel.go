package core

import (
	"sort"
	"sync"
	"time"
)

// Member is a deliverable channel participant.
type Member interface {
	Deliver(line string)
	Nickname() string
}

// Channel groups members subscribed to the same name.
type Channel struct {
	name      string
	createdAt time.Time

	mu      sync.RWMutex
	topic   string
	members map[Member]struct{}
}

// NewChannel constructs a channel with no members.
func NewChannel(name, topic string) *Channel {
	return &Channel{
		name:      name,
		createdAt: time.Now(),
		topic:     topic,
		members:   make(map[Member]struct{}),
	}
}

// Name returns the channel name including the leading '#'.
func (c *Channel) Name() string {
	return c.name
}

// CreatedAt returns when the channel was created.
func (c *Channel) CreatedAt() time.Time {
	return c.createdAt
}

// Topic returns the current topic, empty when unset.
func (c *Channel) Topic() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topic
}

// SetTopic replaces the topic.
func (c *Channel) SetTopic(topic string) {
	c.mu.Lock()
	c.topic = topic
	c.mu.Unlock()
}

// Add inserts a member. Returns true if newly added.
func (c *Channel) Add(m Member) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.members[m]; exists {
		return false
	}
	c.members[m] = struct{}{}
	return true
}

// Remove deletes a member. Returns true if removed.
func (c *Channel) Remove(m Member) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.members[m]; !exists {
		return false
	}
	delete(c.members, m)
	return true
}

// Has reports whether m is a member.
func (c *Channel) Has(m Member) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.members[m]
	return ok
}

// Len returns the member count.
func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// Members returns a snapshot of the member set.
func (c *Channel) Members() []Member {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Member, 0, len(c.members))
	for m := range c.members {
		out = append(out, m)
	}
	return out
}

// Names returns the sorted nicknames of current members.
func (c *Channel) Names() []string {
	members := c.Members()
	names := make([]string, 0, len(members))
	for _, m := range members {
		if nick := m.Nickname(); nick != "" {
			names = append(names, nick)
		}
	}
	sort.Strings(names)
	return names
}

// Broadcast delivers line to every current member.
func (c *Channel) Broadcast(line string) {
	for _, m := range c.Members() {
		m.Deliver(line)
	}
}

// Empty returns true if no members are in the channel.
func (c *Channel) Empty() bool {
	return c.Len() == 0
}
