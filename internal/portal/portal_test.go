package portal

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"supermart/internal/domain"
	"supermart/internal/store"
	"supermart/internal/store/memory"
)

func newTestPortal(t *testing.T) (*Portal, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	p, err := Open(context.Background(), repo, WithHashCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("open portal: %v", err)
	}
	return p, repo
}

func TestDefaultSettings(t *testing.T) {
	p, _ := newTestPortal(t)
	s := p.Settings()
	if s.LowStockThreshold != 10 || s.ThemeColor != "#4f46e5" || s.Currency != "USD" {
		t.Fatalf("unexpected defaults %+v", s)
	}
	if len(p.EnabledPaymentMethods()) != 3 {
		t.Fatalf("expected 3 enabled payment methods")
	}
	if m, ok := p.PaymentMethod("credit/debit card"); !ok || m.Type != domain.PaymentTypeCard {
		t.Fatalf("expected card payment method, got %+v ok=%v", m, ok)
	}
}

func TestUpdateSettingsValidatesCurrency(t *testing.T) {
	p, _ := newTestPortal(t)
	ctx := context.Background()

	eur := "EUR"
	if _, err := p.UpdateSettings(ctx, domain.SettingsPatch{Currency: &eur}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid currency rejection, got %v", err)
	}

	ngn := "ngn"
	threshold := 5
	updated, err := p.UpdateSettings(ctx, domain.SettingsPatch{Currency: &ngn, LowStockThreshold: &threshold})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if updated.Currency != "NGN" || updated.LowStockThreshold != 5 {
		t.Fatalf("unexpected settings %+v", updated)
	}
}

func TestDisablingPaymentMethod(t *testing.T) {
	p, _ := newTestPortal(t)
	methods := p.Settings().PaymentMethods
	methods[2].Enabled = false

	if _, err := p.UpdateSettings(context.Background(), domain.SettingsPatch{PaymentMethods: methods}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok := p.PaymentMethod("Mobile Transfer"); ok {
		t.Fatalf("disabled method must not resolve")
	}

	bad := []domain.PaymentMethodConfig{{Label: "Crypto", Type: "COIN", Enabled: true}}
	if _, err := p.UpdateSettings(context.Background(), domain.SettingsPatch{PaymentMethods: bad}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected unsupported type rejection, got %v", err)
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	p, _ := newTestPortal(t)
	ctx := context.Background()

	user, err := p.Register(ctx, domain.RegisterRequest{Name: "Kim", Email: "Kim@Example.com", Password: "s3cret!"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != domain.RoleStaff || user.Email != "kim@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	if _, err := p.Register(ctx, domain.RegisterRequest{Name: "Kim 2", Email: "KIM@example.com", Password: "another1"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected duplicate email conflict, got %v", err)
	}

	if _, err := p.Authenticate("kim@example.com", "s3cret!"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := p.Authenticate("kim@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := p.Authenticate("admin@supermart.ai", "admin123"); err != nil {
		t.Fatalf("expected seeded admin login, got %v", err)
	}
}

func TestUserManagementGuards(t *testing.T) {
	p, _ := newTestPortal(t)
	ctx := context.Background()

	if err := p.RemoveUser(ctx, "u-1", "u-1"); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected self-removal rejection, got %v", err)
	}
	if _, err := p.ToggleRole(ctx, "u-1", "u-1"); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected self-demotion rejection, got %v", err)
	}

	promoted, err := p.ToggleRole(ctx, "u-1", "u-2")
	if err != nil || promoted.Role != domain.RoleAdmin {
		t.Fatalf("expected u-2 promoted, got %+v err=%v", promoted, err)
	}
	demoted, err := p.ToggleRole(ctx, "u-1", "u-2")
	if err != nil || demoted.Role != domain.RoleStaff {
		t.Fatalf("expected u-2 demoted, got %+v err=%v", demoted, err)
	}

	if err := p.RemoveUser(ctx, "u-1", "u-2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := p.User("u-2"); ok {
		t.Fatalf("expected u-2 removed")
	}
	if err := p.RemoveUser(ctx, "u-1", "u-2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLegacyPlaintextPasswordsAreUpgraded(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	legacy := []domain.UserAccount{{ID: "u-9", Name: "Old Timer", Email: "old@supermart.ai", Role: domain.RoleStaff, Password: "plain-pass"}}
	if err := repo.SaveAll(ctx, store.Document{Name: store.Users, Value: legacy}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p, err := Open(ctx, repo, WithHashCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := p.Authenticate("old@supermart.ai", "plain-pass"); err != nil {
		t.Fatalf("expected upgraded login to work, got %v", err)
	}

	var stored []domain.UserAccount
	if err := repo.Load(ctx, store.Users, &stored); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !isPasswordHash(stored[0].Password) {
		t.Fatalf("expected stored password hashed, got %q", stored[0].Password)
	}
}

func TestChatKeepsOrderAndLimit(t *testing.T) {
	p, _ := newTestPortal(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		if _, err := p.PostMessage(ctx, "u-2", text); err != nil {
			t.Fatalf("post %q: %v", text, err)
		}
	}
	if _, err := p.PostMessage(ctx, "u-2", "   "); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected empty message rejection, got %v", err)
	}

	latest := p.Messages(2)
	if len(latest) != 2 || latest[0].Text != "second" || latest[1].Text != "third" {
		t.Fatalf("unexpected messages %+v", latest)
	}
	if latest[1].SenderName != "John Cashier" {
		t.Fatalf("expected sender name snapshot, got %q", latest[1].SenderName)
	}
}
