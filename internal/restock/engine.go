package restock

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"habibdukan/backend/internal/domain"
)

const (
	UrgencyOutOfStock = "out_of_stock"
	UrgencyCritical   = "critical"
	UrgencyLow        = "low"
)

// Engine turns current stock and recent sales velocity into reorder
// suggestions.
type Engine struct {
	windowDays        int
	coverDays         int
	lowStockThreshold int
}

func NewEngine(windowDays int, coverDays int, lowStockThreshold int) *Engine {
	if windowDays < 1 {
		windowDays = 7
	}
	if coverDays < 1 {
		coverDays = 14
	}
	if lowStockThreshold < 0 {
		lowStockThreshold = 10
	}
	return &Engine{windowDays: windowDays, coverDays: coverDays, lowStockThreshold: lowStockThreshold}
}

func (e *Engine) WindowDays() int {
	return e.windowDays
}

// Suggest returns products at or below the low-stock threshold, plus any
// product whose stock will not last the sales window at current velocity.
// sold maps product id to units sold during the window.
func (e *Engine) Suggest(products []domain.Product, sold map[string]int) []domain.RestockSuggestion {
	window := decimal.NewFromInt(int64(e.windowDays))
	suggestions := make([]domain.RestockSuggestion, 0, 16)

	for _, p := range products {
		units := sold[p.ID]
		velocity := decimal.NewFromInt(int64(units)).Div(window)
		stock := decimal.NewFromInt(int64(p.Stock))

		var cover *decimal.Decimal
		if velocity.IsPositive() {
			c := stock.Div(velocity).Round(1)
			cover = &c
		}

		lowStock := p.Stock <= e.lowStockThreshold
		runningOut := cover != nil && cover.LessThan(window)
		if !lowStock && !runningOut {
			continue
		}

		target := int(velocity.Mul(decimal.NewFromInt(int64(e.coverDays))).Ceil().IntPart())
		suggested := max(target-p.Stock, 0)
		if lowStock {
			suggested = max(suggested, e.lowStockThreshold+1-p.Stock)
		}

		suggestions = append(suggestions, domain.RestockSuggestion{
			ProductID:         p.ID,
			ProductNumber:     p.ProductNumber,
			Name:              p.Name,
			Stock:             p.Stock,
			SoldLastWindow:    units,
			DailyVelocity:     velocity.Round(2),
			DaysOfCover:       cover,
			SuggestedQuantity: suggested,
			Urgency:           e.urgency(p.Stock, cover),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if ra, rb := urgencyRank(a.Urgency), urgencyRank(b.Urgency); ra != rb {
			return ra < rb
		}
		switch {
		case a.DaysOfCover != nil && b.DaysOfCover != nil:
			if !a.DaysOfCover.Equal(*b.DaysOfCover) {
				return a.DaysOfCover.LessThan(*b.DaysOfCover)
			}
		case a.DaysOfCover != nil:
			return true
		case b.DaysOfCover != nil:
			return false
		}
		if a.Stock != b.Stock {
			return a.Stock < b.Stock
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return suggestions
}

func (e *Engine) urgency(stock int, cover *decimal.Decimal) string {
	switch {
	case stock == 0:
		return UrgencyOutOfStock
	case cover != nil && cover.LessThan(decimal.NewFromInt(3)):
		return UrgencyCritical
	case stock*2 <= e.lowStockThreshold:
		return UrgencyCritical
	default:
		return UrgencyLow
	}
}

func urgencyRank(u string) int {
	switch u {
	case UrgencyOutOfStock:
		return 0
	case UrgencyCritical:
		return 1
	default:
		return 2
	}
}
