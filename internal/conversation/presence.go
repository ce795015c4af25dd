package conversation

import (
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
)

// Presence is the set of display names currently typing in the open
// conversation, in the order they started. An entry that is not refreshed
// by a new start signal within ttl expires even if its stop signal was lost.
// Presence is not safe for concurrent use; the Synchronizer guards it.
type Presence struct {
	clock   clockwork.Clock
	ttl     time.Duration
	entries []presenceEntry
}

type presenceEntry struct {
	name    string
	expires time.Time
}

// NewPresence creates an empty set. ttl <= 0 disables expiry.
func NewPresence(clock clockwork.Clock, ttl time.Duration) *Presence {
	return &Presence{clock: clock, ttl: ttl}
}

// Start adds name or refreshes its expiry. Reports whether the visible set changed.
func (p *Presence) Start(name string) bool {
	if name == "" {
		return false
	}
	now := p.clock.Now()
	expires := time.Time{}
	if p.ttl > 0 {
		expires = now.Add(p.ttl)
	}
	if i := p.index(name); i >= 0 {
		wasLive := p.live(p.entries[i], now)
		p.entries[i].expires = expires
		return !wasLive
	}
	p.entries = append(p.entries, presenceEntry{name: name, expires: expires})
	return true
}

// Stop removes name. Reports whether the visible set changed.
func (p *Presence) Stop(name string) bool {
	i := p.index(name)
	if i < 0 {
		return false
	}
	wasLive := p.live(p.entries[i], p.clock.Now())
	p.entries = slices.Delete(p.entries, i, i+1)
	return wasLive
}

// Names returns the unexpired names.
func (p *Presence) Names() []string {
	now := p.clock.Now()
	var out []string
	for _, e := range p.entries {
		if p.live(e, now) {
			out = append(out, e.name)
		}
	}
	return out
}

// Sweep drops expired entries. Reports whether any were dropped.
func (p *Presence) Sweep() bool {
	now := p.clock.Now()
	n := len(p.entries)
	p.entries = slices.DeleteFunc(p.entries, func(e presenceEntry) bool { return !p.live(e, now) })
	return len(p.entries) != n
}

// Clear empties the set.
func (p *Presence) Clear() bool {
	had := len(p.Names()) > 0
	p.entries = nil
	return had
}

func (p *Presence) index(name string) int {
	return slices.IndexFunc(p.entries, func(e presenceEntry) bool { return e.name == name })
}

func (p *Presence) live(e presenceEntry, now time.Time) bool {
	return e.expires.IsZero() || now.Before(e.expires)
}
