package routing

import (
	"errors"
	"fmt"
)

// ErrUnknownTopic is returned when a topic key is not in the registry.
var ErrUnknownTopic = errors.New("unknown topic")

// Topic is a labelled thread of the destination group.
type Topic struct {
	Key      string
	ThreadID int
	Label    string
}

// Registry maps topic keys to destination threads. It is fixed after construction.
type Registry struct {
	topics   []Topic
	byKey    map[string]Topic
	fallback Topic
}

// NewRegistry builds a registry from an ordered topic list. fallbackKey names
// the topic that unknown keys resolve to.
func NewRegistry(topics []Topic, fallbackKey string) (*Registry, error) {
	if len(topics) == 0 {
		return nil, errors.New("topic registry cannot be empty")
	}
	r := &Registry{
		topics: make([]Topic, 0, len(topics)),
		byKey:  make(map[string]Topic, len(topics)),
	}
	for _, t := range topics {
		if t.Key == "" {
			return nil, errors.New("topic key cannot be empty")
		}
		if _, dup := r.byKey[t.Key]; dup {
			return nil, fmt.Errorf("duplicate topic key %q", t.Key)
		}
		if t.Label == "" {
			t.Label = t.Key
		}
		r.topics = append(r.topics, t)
		r.byKey[t.Key] = t
	}
	fb, ok := r.byKey[fallbackKey]
	if !ok {
		return nil, fmt.Errorf("fallback topic %q: %w", fallbackKey, ErrUnknownTopic)
	}
	r.fallback = fb
	return r, nil
}

// Topics returns the topics in configuration order.
func (r *Registry) Topics() []Topic {
	return append([]Topic(nil), r.topics...)
}

// Lookup returns the topic for key.
func (r *Registry) Lookup(key string) (Topic, bool) {
	t, ok := r.byKey[key]
	return t, ok
}

// Resolve returns the topic for key, or the fallback topic when key is unknown.
func (r *Registry) Resolve(key string) Topic {
	if t, ok := r.byKey[key]; ok {
		return t
	}
	return r.fallback
}

// Label returns the display label of key, or key itself when unknown.
func (r *Registry) Label(key string) string {
	if t, ok := r.byKey[key]; ok {
		return t.Label
	}
	return key
}
