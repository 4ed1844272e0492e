package export

import (
	"fmt"
	"strings"
	"time"

	"supermart/internal/domain"
)

var receiptColumns = []string{"Receipt ID", "Date", "Customer", "Items", "Total", "Payment Method", "Status"}

// ReceiptsCSV renders the journal with every field double-quoted.
func ReceiptsCSV(receipts []domain.Receipt) []byte {
	var b strings.Builder
	writeRecord(&b, receiptColumns)
	for _, r := range receipts {
		writeRecord(&b, receiptRow(r))
	}
	return []byte(b.String())
}

func writeRecord(b *strings.Builder, fields []string) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

func receiptRow(r domain.Receipt) []string {
	return []string{
		r.ID,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.CustomerName,
		itemSummary(r.Items),
		r.Total.StringFixed(2),
		r.PaymentMethod,
		r.Status,
	}
}

func itemSummary(items []domain.ReceiptItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
	}
	return strings.Join(parts, "; ")
}

// FileName returns a dated export name such as supermart-receipts-2026-03-14.csv.
func FileName(ext string, at time.Time) string {
	return fmt.Sprintf("supermart-receipts-%s.%s", at.UTC().Format("2006-01-02"), ext)
}
