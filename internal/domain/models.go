package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPaid      = "PAID"
	StatusPending   = "PENDING"
	StatusCancelled = "CANCELLED"
)

const (
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
)

const (
	PaymentTypeCash    = "CASH"
	PaymentTypeCard    = "CARD"
	PaymentTypeDigital = "DIGITAL"
)

const (
	WalkInCustomer        = "Walk-in Customer"
	DeferredPaymentLabel  = "Deferred Payment"
	UnknownDebtorLocation = "Unknown"
	UnknownDebtorPhone    = "N/A"
)

type QuantityDiscount struct {
	Threshold  int             `json:"threshold"`
	Percentage decimal.Decimal `json:"percentage"`
}

type Product struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Category         string            `json:"category"`
	Price            decimal.Decimal   `json:"price"`
	SalePrice        *decimal.Decimal  `json:"sale_price,omitempty"`
	QuantityDiscount *QuantityDiscount `json:"quantity_discount,omitempty"`
	Stock            int               `json:"stock"`
	Barcode          string            `json:"barcode,omitempty"`
	Description      string            `json:"description,omitempty"`
	Image            string            `json:"image,omitempty"`
}

// ProductPatch carries the fields of a partial product edit. Nil fields are left untouched.
type ProductPatch struct {
	Name             *string           `json:"name,omitempty"`
	Category         *string           `json:"category,omitempty"`
	Price            *decimal.Decimal  `json:"price,omitempty"`
	SalePrice        *decimal.Decimal  `json:"sale_price,omitempty"`
	ClearSalePrice   bool              `json:"clear_sale_price,omitempty"`
	QuantityDiscount *QuantityDiscount `json:"quantity_discount,omitempty"`
	ClearDiscount    bool              `json:"clear_discount,omitempty"`
	Stock            *int              `json:"stock,omitempty"`
	Barcode          *string           `json:"barcode,omitempty"`
	Description      *string           `json:"description,omitempty"`
	Image            *string           `json:"image,omitempty"`
}

type ReceiptItem struct {
	ProductID       string           `json:"product_id"`
	Name            string           `json:"name"`
	Category        string           `json:"category,omitempty"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	Quantity        int              `json:"quantity"`
	LineTotal       decimal.Decimal  `json:"line_total"`
	DiscountApplied *decimal.Decimal `json:"discount_applied,omitempty"`
}

type Receipt struct {
	ID               string          `json:"id"`
	CreatedAt        time.Time       `json:"created_at"`
	Items            []ReceiptItem   `json:"items"`
	Total            decimal.Decimal `json:"total"`
	CustomerName     string          `json:"customer_name,omitempty"`
	CustomerLocation string          `json:"customer_location,omitempty"`
	CustomerPhone    string          `json:"customer_phone,omitempty"`
	DebtorID         string          `json:"debtor_id,omitempty"`
	PaymentMethod    string          `json:"payment_method"`
	Status           string          `json:"status"`
	CashierID        string          `json:"cashier_id,omitempty"`
}

type Debtor struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Location   string          `json:"location"`
	Phone      string          `json:"phone"`
	TotalOwed  decimal.Decimal `json:"total_owed"`
	LastUpdate time.Time       `json:"last_update"`
}

// Transition records a receipt status change as an explicit (from, to) pair.
type Transition struct {
	ReceiptID string `json:"receipt_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

type PaymentMethodConfig struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
	Type    string `json:"type"`
}

type Settings struct {
	LowStockThreshold int                   `json:"low_stock_threshold"`
	ThemeColor        string                `json:"theme_color"`
	Currency          string                `json:"currency"`
	PaymentMethods    []PaymentMethodConfig `json:"payment_methods"`
	SpreadsheetURL    string                `json:"spreadsheet_url,omitempty"`
}

type SettingsPatch struct {
	LowStockThreshold *int                  `json:"low_stock_threshold,omitempty"`
	ThemeColor        *string               `json:"theme_color,omitempty"`
	Currency          *string               `json:"currency,omitempty"`
	PaymentMethods    []PaymentMethodConfig `json:"payment_methods,omitempty"`
	SpreadsheetURL    *string               `json:"spreadsheet_url,omitempty"`
}

type UserAccount struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	AvatarColor string    `json:"avatar_color"`
	Bio         string    `json:"bio,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
	Password    string    `json:"password,omitempty"`
}

// PublicUser is a UserAccount without its credential.
type PublicUser struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	AvatarColor string    `json:"avatar_color"`
	Bio         string    `json:"bio,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

func (u UserAccount) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		AvatarColor: u.AvatarColor,
		Bio:         u.Bio,
		JoinedAt:    u.JoinedAt,
	}
}

type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	Translated string    `json:"translated,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

type Actor struct {
	UserID string
	Email  string
	Role   string
}

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CustomerInfo struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Phone    string `json:"phone"`
}

type SaleRequest struct {
	Cart          []CartLine   `json:"cart"`
	Customer      CustomerInfo `json:"customer"`
	PaymentMethod string       `json:"payment_method"`
	Status        string       `json:"status"`
	CashierID     string       `json:"-"`
}

type SaleResponse struct {
	Receipt Receipt `json:"receipt"`
}

type CancelResponse struct {
	Receipt *Receipt    `json:"receipt"`
	Applied bool        `json:"applied"`
	Change  *Transition `json:"transition,omitempty"`
}

type ClearDebtResponse struct {
	Debtor      *Debtor      `json:"debtor"`
	Transitions []Transition `json:"transitions"`
}

type DebtorStatement struct {
	Debtor      Debtor          `json:"debtor"`
	Receipts    []Receipt       `json:"receipts"`
	Items       []ReceiptItem   `json:"items"`
	PendingSum  decimal.Decimal `json:"pending_sum"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type BalanceDrift struct {
	DebtorID string          `json:"debtor_id"`
	Name     string          `json:"name"`
	Recorded decimal.Decimal `json:"recorded"`
	Computed decimal.Decimal `json:"computed"`
	Delta    decimal.Decimal `json:"delta"`
}

type BalanceAudit struct {
	Drifts          []BalanceDrift `json:"drifts"`
	OrphanReceipts  []string       `json:"orphan_receipts"`
	DebtorsChecked  int            `json:"debtors_checked"`
	PendingReceipts int            `json:"pending_receipts"`
	CheckedAt       time.Time      `json:"checked_at"`
}

type RestockRequest struct {
	ProductIDs []string `json:"product_ids"`
	NewStock   int      `json:"new_stock"`
}

type GenerateProductsRequest struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	User        PublicUser `json:"user"`
	ExpiresAt   string     `json:"expires_at"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserCreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type ProfileUpdateRequest struct {
	Name *string `json:"name,omitempty"`
	Bio  *string `json:"bio,omitempty"`
}

type ChatPostRequest struct {
	Text string `json:"text"`
}

type TranslateRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type SuggestRequest struct {
	Limit int `json:"limit"`
}

type TextResponse struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

type VoucherResponse struct {
	ReceiptID    string `json:"receipt_id"`
	PreviewText  string `json:"preview_text"`
	EscposBase64 string `json:"escpos_base64"`
	FileName     string `json:"file_name"`
}

type ChartPoint struct {
	Label string          `json:"label"`
	Sales decimal.Decimal `json:"sales"`
}

type ProductSales struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type SalesSummary struct {
	Revision        uint64                     `json:"revision"`
	Range           string                     `json:"range"`
	TotalRevenue    decimal.Decimal            `json:"total_revenue"`
	ItemsSold       int                        `json:"items_sold"`
	Transactions    int                        `json:"transactions"`
	PeriodRevenue   map[string]decimal.Decimal `json:"period_revenue"`
	PeriodCounts    map[string]int             `json:"period_counts"`
	Chart           []ChartPoint               `json:"chart"`
	StatusCounts    map[string]int             `json:"status_counts"`
	TopProducts     []ProductSales             `json:"top_products"`
	LowStockCount   int                        `json:"low_stock_count"`
	OutstandingDebt decimal.Decimal            `json:"outstanding_debt"`
	ActiveDebtors   int                        `json:"active_debtors"`
	Currency        string                     `json:"currency"`
	GeneratedAt     time.Time                  `json:"generated_at"`
}
