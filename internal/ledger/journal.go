package ledger

import (
	"supermart/internal/domain"
)

// Journal is the append-only receipt history. Only a receipt's status changes
// after it is appended.
type Journal struct {
	receipts []domain.Receipt
}

func NewJournal(receipts []domain.Receipt) *Journal {
	j := &Journal{receipts: make([]domain.Receipt, 0, len(receipts))}
	for _, r := range receipts {
		j.receipts = append(j.receipts, cloneReceipt(r))
	}
	return j
}

func (j *Journal) clone() *Journal {
	return NewJournal(j.receipts)
}

func (j *Journal) Append(r domain.Receipt) {
	j.receipts = append(j.receipts, cloneReceipt(r))
}

func (j *Journal) Get(id string) (domain.Receipt, bool) {
	idx := j.index(id)
	if idx < 0 {
		return domain.Receipt{}, false
	}
	return cloneReceipt(j.receipts[idx]), true
}

func (j *Journal) Has(id string) bool {
	return j.index(id) >= 0
}

// SetStatus moves a receipt to status and reports the transition. It reports
// false when the receipt is unknown or the move is not allowed, which makes a
// second cancellation a no-op.
func (j *Journal) SetStatus(id string, status string) (domain.Transition, bool) {
	idx := j.index(id)
	if idx < 0 {
		return domain.Transition{}, false
	}
	from := j.receipts[idx].Status
	if !canTransition(from, status) {
		return domain.Transition{}, false
	}
	j.receipts[idx].Status = status
	return domain.Transition{ReceiptID: id, From: from, To: status}, true
}

// FindPendingByCustomer returns PENDING receipts whose customer name matches
// case-insensitively.
func (j *Journal) FindPendingByCustomer(name string) []domain.Receipt {
	out := make([]domain.Receipt, 0)
	if name == "" {
		return out
	}
	for _, r := range j.receipts {
		if r.Status == domain.StatusPending && sameCustomer(r.CustomerName, name) {
			out = append(out, cloneReceipt(r))
		}
	}
	return out
}

// PendingFor returns the PENDING receipts attributed to d: those carrying its
// id, plus legacy receipts without a debtor id whose name matches.
func (j *Journal) PendingFor(d domain.Debtor) []domain.Receipt {
	out := make([]domain.Receipt, 0)
	for _, r := range j.receipts {
		if r.Status == domain.StatusPending && belongsTo(r, d) {
			out = append(out, cloneReceipt(r))
		}
	}
	return out
}

// List returns receipts newest first.
func (j *Journal) List() []domain.Receipt {
	out := make([]domain.Receipt, 0, len(j.receipts))
	for i := len(j.receipts) - 1; i >= 0; i-- {
		out = append(out, cloneReceipt(j.receipts[i]))
	}
	return out
}

func (j *Journal) index(id string) int {
	if id == "" {
		return -1
	}
	for i := range j.receipts {
		if j.receipts[i].ID == id {
			return i
		}
	}
	return -1
}

func belongsTo(r domain.Receipt, d domain.Debtor) bool {
	if r.DebtorID != "" {
		return r.DebtorID == d.ID
	}
	return sameCustomer(r.CustomerName, d.Name)
}

func canTransition(from string, to string) bool {
	switch from {
	case domain.StatusPending:
		return to == domain.StatusPaid || to == domain.StatusCancelled
	case domain.StatusPaid:
		return to == domain.StatusCancelled
	default:
		return false
	}
}

func cloneReceipt(src domain.Receipt) domain.Receipt {
	dup := src
	dup.Items = make([]domain.ReceiptItem, len(src.Items))
	for i, item := range src.Items {
		if item.DiscountApplied != nil {
			pct := *item.DiscountApplied
			item.DiscountApplied = &pct
		}
		dup.Items[i] = item
	}
	return dup
}
