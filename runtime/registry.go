package runtime

import (
	"ledger-chat/contract"
	"sync"
)

type Set map[string]struct{}

// Registry keeps the sinks subscribed to each space.
type Registry struct {
	mu           sync.RWMutex
	Sessions     map[string]contract.EventSink // map subscriber -> Sink
	SpaceMembers map[int64]Set                 // map space to subscribers
}

func NewRegistry() *Registry {
	return &Registry{
		Sessions:     make(map[string]contract.EventSink),
		SpaceMembers: make(map[int64]Set),
	}
}

// GetSinksForSpace resolves the subscribers of a space into their sinks.
// A subscriber watching several spaces owns a single sink.
// Returns nil if nobody watches the space.
func (r *Registry) GetSinksForSpace(spaceID int64) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.SpaceMembers[spaceID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for subscriberID := range members {
		if sink, exists := r.Sessions[subscriberID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a subscriber's sink and assigns it to a space.
// If the space does not yet exist in the registry, it is initialized on the fly.
func (r *Registry) Subscribe(subscriberID string, spaceID int64, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Sessions[subscriberID] = sink

	if _, ok := r.SpaceMembers[spaceID]; !ok {
		r.SpaceMembers[spaceID] = make(Set)
	}
	r.SpaceMembers[spaceID][subscriberID] = struct{}{}
}

// Unsubscribe removes a subscriber from a space. The sink is dropped once
// the subscriber watches no space at all, and empty spaces are removed.
func (r *Registry) Unsubscribe(subscriberID string, spaceID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.SpaceMembers[spaceID]; ok {
		delete(members, subscriberID)
		if len(members) == 0 {
			delete(r.SpaceMembers, spaceID)
		}
	}

	for _, members := range r.SpaceMembers {
		if _, ok := members[subscriberID]; ok {
			return
		}
	}
	delete(r.Sessions, subscriberID)
}
