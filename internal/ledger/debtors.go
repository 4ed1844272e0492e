package ledger

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"supermart/internal/domain"
	"supermart/internal/xid"
)

// DebtorLedger holds outstanding customer balances. Debtors carry a stable id;
// names are only used to resolve customer input.
type DebtorLedger struct {
	debtors []domain.Debtor
	newID   func() string
}

func NewDebtorLedger(debtors []domain.Debtor) *DebtorLedger {
	l := &DebtorLedger{
		debtors: make([]domain.Debtor, len(debtors)),
		newID:   func() string { return xid.New("debtor") },
	}
	copy(l.debtors, debtors)
	return l
}

func (l *DebtorLedger) clone() *DebtorLedger {
	dup := NewDebtorLedger(l.debtors)
	dup.newID = l.newID
	return dup
}

// FindByName returns the first debtor whose name matches case-insensitively.
func (l *DebtorLedger) FindByName(name string) (domain.Debtor, bool) {
	idx := l.indexByName(name)
	if idx < 0 {
		return domain.Debtor{}, false
	}
	return l.debtors[idx], true
}

func (l *DebtorLedger) Get(id string) (domain.Debtor, bool) {
	idx := l.index(id)
	if idx < 0 {
		return domain.Debtor{}, false
	}
	return l.debtors[idx], true
}

// Credit adds amount to the named debtor, creating the debtor when the name
// is unseen.
func (l *DebtorLedger) Credit(name string, amount decimal.Decimal, location string, phone string, at time.Time) domain.Debtor {
	if idx := l.indexByName(name); idx >= 0 {
		l.debtors[idx].TotalOwed = l.debtors[idx].TotalOwed.Add(amount)
		l.debtors[idx].LastUpdate = at
		return l.debtors[idx]
	}

	debtor := domain.Debtor{
		ID:         l.newID(),
		Name:       strings.TrimSpace(name),
		Location:   defaultString(strings.TrimSpace(location), domain.UnknownDebtorLocation),
		Phone:      defaultString(strings.TrimSpace(phone), domain.UnknownDebtorPhone),
		TotalOwed:  amount,
		LastUpdate: at,
	}
	l.debtors = append(l.debtors, debtor)
	return debtor
}

// Debit subtracts amount from the named debtor, clamped at zero.
func (l *DebtorLedger) Debit(name string, amount decimal.Decimal, at time.Time) bool {
	return l.debitAt(l.indexByName(name), amount, at)
}

func (l *DebtorLedger) DebitByID(id string, amount decimal.Decimal, at time.Time) bool {
	return l.debitAt(l.index(id), amount, at)
}

func (l *DebtorLedger) debitAt(idx int, amount decimal.Decimal, at time.Time) bool {
	if idx < 0 {
		return false
	}
	owed := l.debtors[idx].TotalOwed.Sub(amount)
	if owed.IsNegative() {
		owed = decimal.Zero
	}
	l.debtors[idx].TotalOwed = owed
	l.debtors[idx].LastUpdate = at
	return true
}

func (l *DebtorLedger) Clear(id string, at time.Time) bool {
	return l.SetBalance(id, decimal.Zero, at)
}

func (l *DebtorLedger) SetBalance(id string, amount decimal.Decimal, at time.Time) bool {
	idx := l.index(id)
	if idx < 0 {
		return false
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	l.debtors[idx].TotalOwed = amount
	l.debtors[idx].LastUpdate = at
	return true
}

func (l *DebtorLedger) Remove(id string) bool {
	idx := l.index(id)
	if idx < 0 {
		return false
	}
	l.debtors = append(l.debtors[:idx], l.debtors[idx+1:]...)
	return true
}

// List returns debtors ordered by balance, largest first.
func (l *DebtorLedger) List() []domain.Debtor {
	out := make([]domain.Debtor, len(l.debtors))
	copy(out, l.debtors)
	slices.SortStableFunc(out, func(a, b domain.Debtor) int {
		if c := b.TotalOwed.Cmp(a.TotalOwed); c != 0 {
			return c
		}
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}

// Search matches the query against debtor name or location.
func (l *DebtorLedger) Search(query string) []domain.Debtor {
	needle := strings.ToLower(strings.TrimSpace(query))
	all := l.List()
	if needle == "" {
		return all
	}
	out := make([]domain.Debtor, 0)
	for _, d := range all {
		if strings.Contains(strings.ToLower(d.Name), needle) || strings.Contains(strings.ToLower(d.Location), needle) {
			out = append(out, d)
		}
	}
	return out
}

func (l *DebtorLedger) index(id string) int {
	if id == "" {
		return -1
	}
	for i := range l.debtors {
		if l.debtors[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *DebtorLedger) indexByName(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1
	}
	for i := range l.debtors {
		if sameCustomer(l.debtors[i].Name, name) {
			return i
		}
	}
	return -1
}

func sameCustomer(a string, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
