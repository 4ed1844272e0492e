package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrConflict           = errors.New("conflict")
)

// Collection names used by the console.
const (
	Products     = "products"
	Receipts     = "receipts"
	Debtors      = "debtors"
	Users        = "portal_users"
	ChatMessages = "chat_messages"
	Settings     = "appSettings"
)

// Document is one named collection scheduled for a save pass.
type Document struct {
	Name  string
	Value any
}

// Store persists named collections. SaveAll writes every document in a single
// pass so related collections never land staggered.
type Store interface {
	Load(ctx context.Context, name string, dest any) error
	SaveAll(ctx context.Context, docs ...Document) error
	Close() error
}

// LoadOrInit loads name into dest. When the collection has never been saved,
// init fills dest with defaults and the result is written back.
func LoadOrInit(ctx context.Context, s Store, name string, dest any, init func()) error {
	err := s.Load(ctx, name, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("load %s: %w", name, err)
	}
	init()
	if err := s.SaveAll(ctx, Document{Name: name, Value: dest}); err != nil {
		return fmt.Errorf("initialize %s: %w", name, err)
	}
	return nil
}
