package store

import (
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"supermart/internal/domain"
)

// DefaultProducts is the catalog written on first run.
func DefaultProducts() []domain.Product {
	return []domain.Product{
		{ID: "p-1", Name: "Organic Bananas", Category: "Produce", Price: decimal.RequireFromString("0.99"), Stock: 150, Barcode: "4011"},
		{ID: "p-2", Name: "Whole Milk", Category: "Dairy", Price: decimal.RequireFromString("3.49"), Stock: 40, Barcode: "0123456789012"},
		{ID: "p-3", Name: "Sourdough Bread", Category: "Bakery", Price: decimal.RequireFromString("5.99"), Stock: 20, Barcode: "0987654321098"},
	}
}

func DefaultSettings() domain.Settings {
	return domain.Settings{
		LowStockThreshold: 10,
		ThemeColor:        "#4f46e5",
		Currency:          "USD",
		PaymentMethods: []domain.PaymentMethodConfig{
			{ID: "cash", Label: "Cash Payment", Enabled: true, Type: domain.PaymentTypeCash},
			{ID: "card", Label: "Credit/Debit Card", Enabled: true, Type: domain.PaymentTypeCard},
			{ID: "digital", Label: "Mobile Transfer", Enabled: true, Type: domain.PaymentTypeDigital},
		},
	}
}

// DefaultUsers builds the initial accounts for a fresh install. Passwords come
// from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; dev defaults are used with a
// warning when either is unset.
func DefaultUsers() []domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := make([]domain.UserAccount, 0, 2)
	for _, u := range []domain.UserAccount{
		{ID: "u-1", Name: "System Admin", Email: "admin@supermart.ai", Role: domain.RoleAdmin, AvatarColor: "#4f46e5", Bio: "Store owner", Password: adminPwd},
		{ID: "u-2", Name: "John Cashier", Email: "john@supermart.ai", Role: domain.RoleStaff, AvatarColor: "#10b981", Bio: "Front counter", Password: staffPwd},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[store] failed to hash seed password for %s: %v", u.Email, err)
		}
		u.Password = string(hash)
		u.JoinedAt = now
		users = append(users, u)
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
