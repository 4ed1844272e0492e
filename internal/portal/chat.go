package portal

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"supermart/internal/domain"
	"supermart/internal/store"
	"supermart/internal/xid"
)

const maxChatMessages = 500

// PostMessage appends a message to the staff chat. The log keeps the most
// recent messages only.
func (p *Portal) PostMessage(ctx context.Context, senderID string, text string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: message text is required", store.ErrInvalidTransaction)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.index(senderID)
	if idx < 0 {
		return domain.ChatMessage{}, fmt.Errorf("%w: unknown sender", store.ErrInvalidTransaction)
	}
	msg := domain.ChatMessage{
		ID:         xid.New("msg"),
		SenderID:   senderID,
		SenderName: p.users[idx].Name,
		Text:       text,
		SentAt:     p.now(),
	}

	next := append(slices.Clone(p.messages), msg)
	if len(next) > maxChatMessages {
		next = next[len(next)-maxChatMessages:]
	}
	if err := p.store.SaveAll(ctx, store.Document{Name: store.ChatMessages, Value: next}); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("persist chat: %w", err)
	}
	p.messages = next
	return msg, nil
}

// Messages returns up to limit of the latest messages, oldest first.
func (p *Portal) Messages(limit int) []domain.ChatMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	start := 0
	if limit > 0 && len(p.messages) > limit {
		start = len(p.messages) - limit
	}
	return slices.Clone(p.messages[start:])
}
