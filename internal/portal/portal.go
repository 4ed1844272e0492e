package portal

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"supermart/internal/domain"
	"supermart/internal/store"
	"supermart/internal/xid"
)

var supportedCurrencies = map[string]bool{"USD": true, "NGN": true}

var avatarColors = []string{"#4f46e5", "#10b981", "#f59e0b", "#ef4444", "#0ea5e9", "#8b5cf6"}

// Portal owns the collections that sit beside the ledger: settings, staff
// accounts and the chat log.
type Portal struct {
	mu       sync.RWMutex
	store    store.Store
	settings domain.Settings
	users    []domain.UserAccount
	messages []domain.ChatMessage
	now      func() time.Time
	hashCost int
}

type Option func(*Portal)

func WithClock(now func() time.Time) Option {
	return func(p *Portal) {
		if now != nil {
			p.now = now
		}
	}
}

// WithHashCost overrides the bcrypt cost used for new passwords.
func WithHashCost(cost int) Option {
	return func(p *Portal) {
		p.hashCost = cost
	}
}

func Open(ctx context.Context, s store.Store, opts ...Option) (*Portal, error) {
	p := &Portal{
		store:    s,
		now:      func() time.Time { return time.Now().UTC() },
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := store.LoadOrInit(ctx, s, store.Settings, &p.settings, func() { p.settings = store.DefaultSettings() }); err != nil {
		return nil, err
	}
	if err := store.LoadOrInit(ctx, s, store.Users, &p.users, func() { p.users = store.DefaultUsers() }); err != nil {
		return nil, err
	}
	if err := store.LoadOrInit(ctx, s, store.ChatMessages, &p.messages, func() { p.messages = []domain.ChatMessage{} }); err != nil {
		return nil, err
	}
	if err := p.upgradeLegacyPasswords(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Portal) Settings() domain.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneSettings(p.settings)
}

func (p *Portal) UpdateSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := cloneSettings(p.settings)
	if patch.LowStockThreshold != nil {
		if *patch.LowStockThreshold < 0 {
			return domain.Settings{}, fmt.Errorf("%w: low stock threshold must not be negative", store.ErrInvalidTransaction)
		}
		next.LowStockThreshold = *patch.LowStockThreshold
	}
	if patch.ThemeColor != nil {
		color := strings.TrimSpace(*patch.ThemeColor)
		if !strings.HasPrefix(color, "#") || (len(color) != 4 && len(color) != 7) {
			return domain.Settings{}, fmt.Errorf("%w: theme color must be a hex color", store.ErrInvalidTransaction)
		}
		next.ThemeColor = color
	}
	if patch.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*patch.Currency))
		if !supportedCurrencies[currency] {
			return domain.Settings{}, fmt.Errorf("%w: unsupported currency %q", store.ErrInvalidTransaction, currency)
		}
		next.Currency = currency
	}
	if patch.PaymentMethods != nil {
		methods, err := normalizePaymentMethods(patch.PaymentMethods)
		if err != nil {
			return domain.Settings{}, err
		}
		next.PaymentMethods = methods
	}
	if patch.SpreadsheetURL != nil {
		next.SpreadsheetURL = strings.TrimSpace(*patch.SpreadsheetURL)
	}

	if err := p.store.SaveAll(ctx, store.Document{Name: store.Settings, Value: next}); err != nil {
		return domain.Settings{}, fmt.Errorf("persist settings: %w", err)
	}
	p.settings = next
	return cloneSettings(next), nil
}

// PaymentMethod returns the enabled method with the given label.
func (p *Portal) PaymentMethod(label string) (domain.PaymentMethodConfig, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.settings.PaymentMethods {
		if m.Enabled && strings.EqualFold(m.Label, strings.TrimSpace(label)) {
			return m, true
		}
	}
	return domain.PaymentMethodConfig{}, false
}

func (p *Portal) EnabledPaymentMethods() []domain.PaymentMethodConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.PaymentMethodConfig, 0, len(p.settings.PaymentMethods))
	for _, m := range p.settings.PaymentMethods {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

func normalizePaymentMethods(methods []domain.PaymentMethodConfig) ([]domain.PaymentMethodConfig, error) {
	out := make([]domain.PaymentMethodConfig, 0, len(methods))
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		m.Label = strings.TrimSpace(m.Label)
		m.Type = strings.ToUpper(strings.TrimSpace(m.Type))
		m.ID = strings.TrimSpace(m.ID)
		if m.Label == "" {
			return nil, fmt.Errorf("%w: payment method label is required", store.ErrInvalidTransaction)
		}
		switch m.Type {
		case domain.PaymentTypeCash, domain.PaymentTypeCard, domain.PaymentTypeDigital:
		default:
			return nil, fmt.Errorf("%w: unsupported payment type %q", store.ErrInvalidTransaction, m.Type)
		}
		if m.ID == "" {
			m.ID = xid.New("pm")
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("%w: duplicate payment method id %q", store.ErrInvalidTransaction, m.ID)
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out, nil
}

func cloneSettings(src domain.Settings) domain.Settings {
	dup := src
	dup.PaymentMethods = slices.Clone(src.PaymentMethods)
	return dup
}
