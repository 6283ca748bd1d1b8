package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"habibdukan/backend/internal/domain"
)

const dateLayout = "2006-01-02"

// DateRange covers whole calendar days in the shop timezone. From is the
// first instant of StartDate and To the first instant after EndDate.
type DateRange struct {
	StartDate string
	EndDate   string
	From      time.Time
	To        time.Time
	Days      int
}

// ResolveRange turns optional YYYY-MM-DD bounds into a DateRange. With both
// bounds empty it covers the last DefaultReportDays days including today.
func (s *Service) ResolveRange(startDate string, endDate string) (DateRange, error) {
	startDate = strings.TrimSpace(startDate)
	endDate = strings.TrimSpace(endDate)

	var start, end time.Time
	switch {
	case startDate == "" && endDate == "":
		end = s.today()
		start = addDays(end, -(DefaultReportDays - 1))
	case startDate == "" || endDate == "":
		return DateRange{}, fmt.Errorf("%w: startDate and endDate are required together", ErrInvalidDateRange)
	default:
		var err error
		start, err = time.ParseInLocation(dateLayout, startDate, s.loc)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: startDate must be YYYY-MM-DD", ErrInvalidDateRange)
		}
		end, err = time.ParseInLocation(dateLayout, endDate, s.loc)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: endDate must be YYYY-MM-DD", ErrInvalidDateRange)
		}
	}

	if start.After(end) {
		return DateRange{}, fmt.Errorf("%w: startDate is after endDate", ErrInvalidDateRange)
	}
	days := calendarDays(start, end)
	if days > maxReportDays {
		return DateRange{}, fmt.Errorf("%w: range exceeds %d days", ErrInvalidDateRange, maxReportDays)
	}

	return DateRange{
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
		From:      start,
		To:        addDays(end, 1),
		Days:      days,
	}, nil
}

// DailySalesReport sums subtotal (tax exclusive) and profit per calendar day.
func (s *Service) DailySalesReport(ctx context.Context, startDate string, endDate string) ([]domain.DailySales, error) {
	r, err := s.ResolveRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.salesBuckets(ctx, r)
}

func (s *Service) DailyExpenseReport(ctx context.Context, startDate string, endDate string) ([]domain.DailyExpense, error) {
	r, err := s.ResolveRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.expenseBuckets(ctx, r)
}

func (s *Service) salesBuckets(ctx context.Context, r DateRange) ([]domain.DailySales, error) {
	key := s.cacheKey("sales", r)
	var cached []domain.DailySales
	slot, hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	} else if hit {
		return cached, nil
	}

	totals, err := s.repo.ListSaleTotals(ctx, r.From, r.To)
	if err != nil {
		return nil, err
	}
	buckets := BucketSales(totals, s.loc)

	if slot == "" {
		return buckets, nil
	}
	if err := s.cache.Set(ctx, slot, buckets, s.cacheTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return buckets, nil
}

func (s *Service) expenseBuckets(ctx context.Context, r DateRange) ([]domain.DailyExpense, error) {
	key := s.cacheKey("expenses", r)
	var cached []domain.DailyExpense
	slot, hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	} else if hit {
		return cached, nil
	}

	expenses, err := s.repo.ListExpenses(ctx, r.From, r.To)
	if err != nil {
		return nil, err
	}
	buckets := BucketExpenses(expenses, s.loc)

	if slot == "" {
		return buckets, nil
	}
	if err := s.cache.Set(ctx, slot, buckets, s.cacheTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return buckets, nil
}

// BucketSales groups sales by their calendar date in loc. Output is sorted
// ascending by date and every sum is rounded to two decimals.
func BucketSales(totals []domain.SaleTotals, loc *time.Location) []domain.DailySales {
	type sums struct{ sales, profit decimal.Decimal }
	byDate := make(map[string]*sums, 8)
	for _, t := range totals {
		date := t.CreatedAt.In(loc).Format(dateLayout)
		b, ok := byDate[date]
		if !ok {
			b = &sums{}
			byDate[date] = b
		}
		b.sales = b.sales.Add(t.Subtotal)
		b.profit = b.profit.Add(t.TotalProfit)
	}

	out := make([]domain.DailySales, 0, len(byDate))
	for date, b := range byDate {
		out = append(out, domain.DailySales{Date: date, TotalSales: round2(b.sales), TotalProfit: round2(b.profit)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func BucketExpenses(expenses []domain.Expense, loc *time.Location) []domain.DailyExpense {
	byDate := make(map[string]decimal.Decimal, 8)
	for _, e := range expenses {
		date := e.CreatedAt.In(loc).Format(dateLayout)
		byDate[date] = byDate[date].Add(e.Amount)
	}

	out := make([]domain.DailyExpense, 0, len(byDate))
	for date, total := range byDate {
		out = append(out, domain.DailyExpense{Date: date, TotalExpense: round2(total)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// DashboardSnapshot reports inventory counts and today's figures. TotalProfit
// is today's profit when anything sold today, otherwise all-time profit.
func (s *Service) DashboardSnapshot(ctx context.Context) (domain.Dashboard, error) {
	stats, err := s.repo.InventoryStats(ctx, LowStockThreshold)
	if err != nil {
		return domain.Dashboard{}, err
	}

	today := s.today()
	totals, err := s.repo.ListSaleTotals(ctx, today, addDays(today, 1))
	if err != nil {
		return domain.Dashboard{}, err
	}
	todaysSales := decimal.Zero
	todaysProfit := decimal.Zero
	for _, t := range totals {
		todaysSales = todaysSales.Add(t.Subtotal)
		todaysProfit = todaysProfit.Add(t.TotalProfit)
	}

	allTime, err := s.repo.AllTimeProfit(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}

	dashboard := domain.Dashboard{
		InventoryStats: stats,
		TodaysSales:    round2(todaysSales),
		TodaysProfit:   round2(todaysProfit),
		AllTimeProfit:  round2(allTime),
		TotalProfit:    round2(allTime),
		Date:           today.Format(dateLayout),
	}
	if len(totals) > 0 {
		dashboard.TotalProfit = dashboard.TodaysProfit
	}
	return dashboard, nil
}

// SalesSummary derives headline analytics from the daily buckets. Averages
// and the trend are taken over days that had sales.
func (s *Service) SalesSummary(ctx context.Context, startDate string, endDate string) (domain.SalesSummary, error) {
	r, err := s.ResolveRange(startDate, endDate)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	sales, err := s.salesBuckets(ctx, r)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	expenses, err := s.expenseBuckets(ctx, r)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	summary := domain.SalesSummary{
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		Days:       r.Days,
		ActiveDays: len(sales),
	}

	totalSales := decimal.Zero
	totalProfit := decimal.Zero
	for _, day := range sales {
		totalSales = totalSales.Add(day.TotalSales)
		totalProfit = totalProfit.Add(day.TotalProfit)
		if summary.BestDay == nil || day.TotalSales.GreaterThan(summary.BestDay.TotalSales) {
			summary.BestDay = &domain.BestDay{Date: day.Date, TotalSales: day.TotalSales}
		}
	}
	totalExpense := decimal.Zero
	for _, day := range expenses {
		totalExpense = totalExpense.Add(day.TotalExpense)
	}

	summary.TotalSales = round2(totalSales)
	summary.TotalProfit = round2(totalProfit)
	summary.TotalExpense = round2(totalExpense)
	summary.NetProfit = round2(totalProfit.Sub(totalExpense))

	if len(sales) > 0 {
		average := totalSales.Div(decimal.NewFromInt(int64(len(sales))))
		last := sales[len(sales)-1].TotalSales
		summary.AverageDailySales = round2(average)
		summary.LastDaySales = last
		if average.IsPositive() {
			summary.SalesTrendPercent = round2(last.Sub(average).Div(average).Mul(decimal.NewFromInt(100)))
		}
	}
	if totalSales.IsPositive() {
		summary.ProfitMarginPercent = round2(totalProfit.Div(totalSales).Mul(decimal.NewFromInt(100)))
	}
	return summary, nil
}

func (s *Service) cacheKey(kind string, r DateRange) string {
	return fmt.Sprintf("%s:%s:%s:%s", kind, s.loc.String(), r.StartDate, r.EndDate)
}

// today is midnight of the current calendar day in the shop timezone.
func (s *Service) today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

func addDays(day time.Time, n int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+n, 0, 0, 0, 0, day.Location())
}

func calendarDays(start time.Time, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}
