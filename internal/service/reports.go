package service

import (
	"context"
	"fmt"
	"log"

	"supermart/internal/analytics"
	"supermart/internal/domain"
	"supermart/internal/export"
)

// Summary returns the dashboard figures for rng. Cached entries are keyed by
// the ledger revision, so any committed change produces a fresh summary.
func (s *Service) Summary(ctx context.Context, rng string) (domain.SalesSummary, error) {
	rng = analytics.NormalizeRange(rng)
	settings := s.portal.Settings()
	revision := s.ledger.Revision()
	now := s.now().In(s.location)
	key := fmt.Sprintf("%s:%d:%d:%s:%s", rng, revision, settings.LowStockThreshold, settings.Currency, now.Format("2006-01-02T15"))

	if cached, ok, err := s.summaries.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: summary cache read failed key=%s: %v", key, err)
	} else if ok {
		return *cached, nil
	}

	summary := analytics.Summarize(analytics.Input{
		Receipts: s.ledger.Receipts(),
		Products: s.ledger.Products(),
		Debtors:  s.ledger.Debtors(),
		Settings: settings,
		Revision: revision,
	}, rng, now)

	if err := s.summaries.Set(ctx, key, &summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: summary cache write failed key=%s: %v", key, err)
	}
	return summary, nil
}

func (s *Service) ExportReceiptsCSV() ([]byte, string) {
	return export.ReceiptsCSV(s.ledger.Receipts()), export.FileName("csv", s.now())
}

func (s *Service) ExportReceiptsXLSX() ([]byte, string, error) {
	data, err := export.ReceiptsXLSX(s.ledger.Receipts())
	if err != nil {
		return nil, "", err
	}
	return data, export.FileName("xlsx", s.now()), nil
}

func (s *Service) Voucher(receiptID string) (domain.VoucherResponse, error) {
	r, err := s.Receipt(receiptID)
	if err != nil {
		return domain.VoucherResponse{}, err
	}
	return export.Voucher(r, s.portal.Settings()), nil
}
