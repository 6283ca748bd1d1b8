package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"habibdukan/backend/internal/domain"
)

// RecalculateProfit rewrites each sale's totalProfit from the current cost
// prices. Sales that reference a deleted product are left untouched and
// reported. This is the only code path that modifies a committed sale.
func (s *Service) RecalculateProfit(ctx context.Context, dryRun bool) (domain.RecalculationResult, error) {
	products, err := s.repo.ListProducts(ctx, domain.SortNewest)
	if err != nil {
		return domain.RecalculationResult{}, err
	}
	costs := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		costs[p.ID] = p.CostPrice
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.RecalculationResult{}, err
	}

	result := domain.RecalculationResult{DryRun: dryRun, MissingProducts: []string{}}
	missing := make(map[string]struct{})

	for _, sale := range sales {
		result.Scanned++

		profit := decimal.Zero
		complete := true
		for _, item := range sale.Items {
			cost, ok := costs[item.ProductID]
			if !ok {
				complete = false
				missing[item.ProductID] = struct{}{}
				continue
			}
			profit = profit.Add(item.Price.Sub(cost).Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		if !complete {
			result.Skipped++
			s.logger.Warn("sale skipped: product no longer exists", zap.String("sale_id", sale.ID))
			continue
		}

		profit = round2(profit)
		if profit.Equal(sale.TotalProfit) {
			result.Unchanged++
			continue
		}
		if !dryRun {
			if err := s.repo.UpdateSaleProfit(ctx, sale.ID, profit); err != nil {
				return result, fmt.Errorf("update profit of sale %s: %w", sale.ID, err)
			}
		}
		result.Updated++
		s.logger.Info("sale profit recalculated",
			zap.String("sale_id", sale.ID),
			zap.String("old_profit", sale.TotalProfit.StringFixed(2)),
			zap.String("new_profit", profit.StringFixed(2)),
			zap.Bool("dry_run", dryRun),
		)
	}

	for id := range missing {
		result.MissingProducts = append(result.MissingProducts, id)
	}
	sort.Strings(result.MissingProducts)

	if result.Updated > 0 && !dryRun {
		s.invalidateReports(ctx)
	}
	return result, nil
}
