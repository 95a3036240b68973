package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Mode is the routing policy.
type Mode string

const (
	// ModeAuto classifies and dispatches every unit immediately.
	ModeAuto Mode = "auto"
	// ModeManual queues every unit for a human topic decision.
	ModeManual Mode = "manual"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeAuto || m == ModeManual
}

var (
	// ErrKeywordExists is returned when adding a keyword a topic already has.
	ErrKeywordExists = errors.New("keyword already exists")
	// ErrKeywordNotFound is returned when removing a keyword a topic does not have.
	ErrKeywordNotFound = errors.New("keyword not found")
	// ErrInvalidMode is returned for a mode other than auto or manual.
	ErrInvalidMode = errors.New("invalid mode")
)

// State is the persisted routing configuration.
type State struct {
	Mode         Mode         `json:"mode"`
	DefaultTopic string       `json:"default_topic"`
	Keywords     KeywordTable `json:"keywords"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.Keywords = s.Keywords.Clone()
	return s
}

// StateStore persists the routing state document.
type StateStore interface {
	// LoadRoutingState returns the stored document, or nil when none exists.
	LoadRoutingState(ctx context.Context) ([]byte, error)
	// SaveRoutingState overwrites the stored document.
	SaveRoutingState(ctx context.Context, doc []byte) error
}

// EncodeState serialises s as the stored document.
func EncodeState(s State) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeState reads a stored document, taking every missing or unusable key
// from defaults. On a malformed document it returns defaults and the error.
func DecodeState(doc []byte, defaults State) (State, error) {
	st := defaults.Clone()

	var raw struct {
		Mode         *Mode           `json:"mode"`
		DefaultTopic *string         `json:"default_topic"`
		Keywords     json.RawMessage `json:"keywords"`
	}
	if err := json.Unmarshal(doc, &raw); err != nil {
		return st, fmt.Errorf("decode routing state: %w", err)
	}

	if raw.Mode != nil && raw.Mode.Valid() {
		st.Mode = *raw.Mode
	}
	if raw.DefaultTopic != nil && *raw.DefaultTopic != "" {
		st.DefaultTopic = *raw.DefaultTopic
	}
	if len(raw.Keywords) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Keywords), []byte("null")) {
		var kw KeywordTable
		if err := json.Unmarshal(raw.Keywords, &kw); err != nil {
			return st, fmt.Errorf("decode routing state keywords: %w", err)
		}
		st.Keywords = kw
	}
	return st, nil
}

// Settings owns the process-wide routing state and writes every change
// through to the store.
type Settings struct {
	registry *Registry
	store    StateStore
	defaults State

	mu    sync.RWMutex
	state State
}

// NewSettings creates settings holding defaults until Load is called.
// store may be nil, in which case nothing is persisted.
func NewSettings(defaults State, registry *Registry, store StateStore) *Settings {
	return &Settings{
		registry: registry,
		store:    store,
		defaults: defaults.Clone(),
		state:    defaults.Clone(),
	}
}

// Load reads the stored state. Errors are not fatal: the settings always end
// up holding a usable state, falling back to the defaults.
func (s *Settings) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.defaults.Clone()
	if s.store == nil {
		return nil
	}

	doc, err := s.store.LoadRoutingState(ctx)
	if err != nil {
		return fmt.Errorf("load routing state: %w", err)
	}
	if doc == nil {
		return nil
	}

	st, err := DecodeState(doc, s.defaults)
	if err != nil {
		return err
	}
	if _, ok := s.registry.Lookup(st.DefaultTopic); !ok {
		st.DefaultTopic = s.defaults.DefaultTopic
		s.state = st
		return fmt.Errorf("stored default topic: %w", ErrUnknownTopic)
	}
	s.state = st
	return nil
}

// Mode returns the current mode.
func (s *Settings) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Mode
}

// Snapshot returns a copy of the current state.
func (s *Settings) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// ToggleMode switches between auto and manual and returns the new mode.
func (s *Settings) ToggleMode(ctx context.Context) (Mode, error) {
	st, err := s.update(ctx, func(st *State) error {
		if st.Mode == ModeAuto {
			st.Mode = ModeManual
		} else {
			st.Mode = ModeAuto
		}
		return nil
	})
	return st.Mode, err
}

// SetMode sets the mode.
func (s *Settings) SetMode(ctx context.Context, m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	_, err := s.update(ctx, func(st *State) error {
		st.Mode = m
		return nil
	})
	return err
}

// SetDefaultTopic sets the topic used when classification finds no match.
func (s *Settings) SetDefaultTopic(ctx context.Context, key string) error {
	if _, ok := s.registry.Lookup(key); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, key)
	}
	_, err := s.update(ctx, func(st *State) error {
		st.DefaultTopic = key
		return nil
	})
	return err
}

// ResetKeywords restores the default keyword table.
func (s *Settings) ResetKeywords(ctx context.Context) error {
	_, err := s.update(ctx, func(st *State) error {
		st.Keywords = s.defaults.Keywords.Clone()
		return nil
	})
	return err
}

// AddKeyword appends word to the keywords of topic.
func (s *Settings) AddKeyword(ctx context.Context, topic, word string) error {
	if _, ok := s.registry.Lookup(topic); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	word = strings.TrimSpace(word)
	if Normalize(word) == "" {
		return errors.New("keyword cannot be empty")
	}
	_, err := s.update(ctx, func(st *State) error {
		for i, e := range st.Keywords {
			if e.Topic != topic {
				continue
			}
			for _, w := range e.Keywords {
				if Normalize(w) == Normalize(word) {
					return fmt.Errorf("%w: %q", ErrKeywordExists, word)
				}
			}
			st.Keywords[i].Keywords = append(st.Keywords[i].Keywords, word)
			return nil
		}
		st.Keywords = append(st.Keywords, TopicKeywords{Topic: topic, Keywords: []string{word}})
		return nil
	})
	return err
}

// RemoveKeyword removes word from the keywords of topic.
func (s *Settings) RemoveKeyword(ctx context.Context, topic, word string) error {
	_, err := s.update(ctx, func(st *State) error {
		for i, e := range st.Keywords {
			if e.Topic != topic {
				continue
			}
			for j, w := range e.Keywords {
				if Normalize(w) == Normalize(word) {
					st.Keywords[i].Keywords = append(e.Keywords[:j:j], e.Keywords[j+1:]...)
					return nil
				}
			}
		}
		return fmt.Errorf("%w: %q in %q", ErrKeywordNotFound, word, topic)
	})
	return err
}

// update applies fn to a copy of the state, installs it and persists it.
// The new state stays in memory even when persisting fails.
func (s *Settings) update(ctx context.Context, fn func(*State) error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	if err := fn(&next); err != nil {
		return s.state.Clone(), err
	}
	s.state = next

	if s.store == nil {
		return next.Clone(), nil
	}
	doc, err := EncodeState(next)
	if err == nil {
		err = s.store.SaveRoutingState(ctx, doc)
	}
	if err != nil {
		return next.Clone(), fmt.Errorf("persist routing state: %w", err)
	}
	return next.Clone(), nil
}
