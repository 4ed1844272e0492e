package analytics

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"supermart/internal/domain"
)

const (
	RangeDay   = "DAY"
	RangeWeek  = "WEEK"
	RangeMonth = "MONTH"
	RangeYear  = "YEAR"
)

const topProductLimit = 5

// Input is the ledger state a summary is computed from.
type Input struct {
	Receipts []domain.Receipt
	Products []domain.Product
	Debtors  []domain.Debtor
	Settings domain.Settings
	Revision uint64
}

// NormalizeRange maps user input to a supported range, defaulting to WEEK.
func NormalizeRange(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case RangeDay:
		return RangeDay
	case RangeMonth:
		return RangeMonth
	case RangeYear:
		return RangeYear
	default:
		return RangeWeek
	}
}

// Summarize computes the dashboard figures. Cancelled receipts never count;
// revenue, items sold and transactions count PAID receipts only.
func Summarize(in Input, rng string, now time.Time) domain.SalesSummary {
	rng = NormalizeRange(rng)
	starts := periodStarts(now)

	summary := domain.SalesSummary{
		Revision:        in.Revision,
		Range:           rng,
		TotalRevenue:    decimal.Zero,
		PeriodRevenue:   make(map[string]decimal.Decimal, len(starts)),
		PeriodCounts:    make(map[string]int, len(starts)),
		StatusCounts:    map[string]int{domain.StatusPaid: 0, domain.StatusPending: 0, domain.StatusCancelled: 0},
		OutstandingDebt: decimal.Zero,
		Currency:        in.Settings.Currency,
		GeneratedAt:     now,
	}
	for key := range starts {
		summary.PeriodRevenue[key] = decimal.Zero
		summary.PeriodCounts[key] = 0
	}

	type bucket struct {
		order int
		sales decimal.Decimal
	}
	buckets := make(map[string]*bucket)
	byProduct := make(map[string]*domain.ProductSales)

	for _, r := range in.Receipts {
		summary.StatusCounts[r.Status]++
		if r.Status == domain.StatusCancelled {
			continue
		}
		at := r.CreatedAt.In(now.Location())
		for key, start := range starts {
			if at.Before(start) {
				continue
			}
			summary.PeriodCounts[key]++
			if r.Status == domain.StatusPaid {
				summary.PeriodRevenue[key] = summary.PeriodRevenue[key].Add(r.Total)
			}
		}
		if r.Status != domain.StatusPaid {
			continue
		}

		summary.Transactions++
		summary.TotalRevenue = summary.TotalRevenue.Add(r.Total)
		for _, item := range r.Items {
			summary.ItemsSold += item.Quantity
			ps, ok := byProduct[item.ProductID]
			if !ok {
				ps = &domain.ProductSales{ProductID: item.ProductID, Name: item.Name, Revenue: decimal.Zero}
				byProduct[item.ProductID] = ps
			}
			ps.Quantity += item.Quantity
			ps.Revenue = ps.Revenue.Add(item.LineTotal)
		}

		if at.Before(starts[strings.ToLower(rng)]) {
			continue
		}
		label, order := chartKey(at, rng)
		b, ok := buckets[label]
		if !ok {
			b = &bucket{order: order, sales: decimal.Zero}
			buckets[label] = b
		}
		b.sales = b.sales.Add(r.Total)
	}

	summary.Chart = make([]domain.ChartPoint, 0, len(buckets))
	labels := make([]string, 0, len(buckets))
	for label := range buckets {
		labels = append(labels, label)
	}
	slices.SortFunc(labels, func(a, b string) int { return cmp.Compare(buckets[a].order, buckets[b].order) })
	for _, label := range labels {
		summary.Chart = append(summary.Chart, domain.ChartPoint{Label: label, Sales: buckets[label].sales})
	}

	summary.TopProducts = make([]domain.ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		summary.TopProducts = append(summary.TopProducts, *ps)
	}
	slices.SortFunc(summary.TopProducts, func(a, b domain.ProductSales) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(summary.TopProducts) > topProductLimit {
		summary.TopProducts = summary.TopProducts[:topProductLimit]
	}

	for _, p := range in.Products {
		if p.Stock <= in.Settings.LowStockThreshold {
			summary.LowStockCount++
		}
	}
	for _, d := range in.Debtors {
		if d.TotalOwed.IsPositive() {
			summary.ActiveDebtors++
			summary.OutstandingDebt = summary.OutstandingDebt.Add(d.TotalOwed)
		}
	}
	return summary
}

// periodStarts returns the start of today, this week (Sunday), this month and
// this year in now's location.
func periodStarts(now time.Time) map[string]time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return map[string]time.Time{
		"day":   day,
		"week":  day.AddDate(0, 0, -int(now.Weekday())),
		"month": time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()),
		"year":  time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()),
	}
}

func chartKey(at time.Time, rng string) (string, int) {
	switch rng {
	case RangeDay:
		return fmt.Sprintf("%d:00", at.Hour()), at.Hour()
	case RangeMonth:
		return fmt.Sprintf("%d", at.Day()), at.Day()
	case RangeYear:
		return at.Format("Jan"), int(at.Month())
	default:
		return at.Format("Mon"), int(at.Weekday())
	}
}
