package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"sync"

	"supermart/internal/domain"
	"supermart/internal/store"
)

// Store keeps collections as encoded JSON so callers never share memory with it.
type Store struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	saves int
	fail  error
}

func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// NewSeeded returns a store pre-populated with the first-run collections.
func NewSeeded() *Store {
	s := New()
	seed := []store.Document{
		{Name: store.Products, Value: store.DefaultProducts()},
		{Name: store.Receipts, Value: []domain.Receipt{}},
		{Name: store.Debtors, Value: []domain.Debtor{}},
		{Name: store.Settings, Value: store.DefaultSettings()},
		{Name: store.Users, Value: store.DefaultUsers()},
		{Name: store.ChatMessages, Value: []domain.ChatMessage{}},
	}
	if err := s.SaveAll(context.Background(), seed...); err != nil {
		log.Fatalf("[memory-store] seed failed: %v", err)
	}
	s.saves = 0
	return s
}

func (s *Store) Load(_ context.Context, name string, dest any) error {
	s.mu.RLock()
	payload, ok := s.docs[name]
	s.mu.RUnlock()
	if !ok {
		return store.ErrNotFound
	}
	return json.Unmarshal(payload, dest)
}

func (s *Store) SaveAll(_ context.Context, docs ...store.Document) error {
	encoded := make(map[string][]byte, len(docs))
	for _, doc := range docs {
		payload, err := json.Marshal(doc.Value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", doc.Name, err)
		}
		encoded[doc.Name] = payload
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	for name, payload := range encoded {
		s.docs[name] = payload
	}
	s.saves++
	return nil
}

func (s *Store) Close() error {
	return nil
}

// FailWith makes every following SaveAll return err. Passing nil clears it.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// Saves reports how many save passes have succeeded since seeding.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Names lists the stored collection names in order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	s.mu.RUnlock()
	slices.Sort(names)
	return names
}
