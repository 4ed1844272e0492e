package export

import (
	"encoding/base64"
	"fmt"
	"strings"

	"supermart/internal/domain"
)

const voucherRule = "================================"

// Voucher builds a printable receipt: a plain-text preview and the same lines
// wrapped in ESC/POS init and partial-cut commands.
func Voucher(r domain.Receipt, settings domain.Settings) domain.VoucherResponse {
	currency := settings.Currency
	lines := []string{
		"SuperMart",
		voucherRule,
		"Receipt: " + r.ID,
		"Date: " + r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		"Customer: " + r.CustomerName,
		"--------------------------------",
	}
	for _, item := range r.Items {
		lines = append(lines, fmt.Sprintf("%s x%d", item.Name, item.Quantity))
		detail := fmt.Sprintf("  @ %s = %s", item.UnitPrice.StringFixed(2), item.LineTotal.StringFixed(2))
		if item.DiscountApplied != nil {
			detail += fmt.Sprintf(" (-%s%%)", item.DiscountApplied.String())
		}
		lines = append(lines, detail)
	}
	lines = append(lines,
		"--------------------------------",
		fmt.Sprintf("Total   : %s %s", currency, r.Total.StringFixed(2)),
		"Payment : "+r.PaymentMethod,
		"Status  : "+r.Status,
	)
	if r.Status == domain.StatusPending {
		lines = append(lines, "Balance due on account")
	}
	lines = append(lines, voucherRule, "Thank you for shopping!", "")

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, 0x1d, 0x56, 0x41, 0x10)

	return domain.VoucherResponse{
		ReceiptID:    r.ID,
		PreviewText:  strings.Join(lines, "\n"),
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		FileName:     fmt.Sprintf("receipt-%s.bin", r.ID),
	}
}
