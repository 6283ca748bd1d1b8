package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"habibdukan/backend/internal/domain"
	"habibdukan/backend/internal/store"
	"habibdukan/backend/internal/xid"
)

// CommitSale validates the cart against live stock, decrements stock and
// records the sale as one atomic unit. On any error no stock moves and no
// sale is written.
func (s *Service) CommitSale(ctx context.Context, req domain.CommitSaleRequest) (domain.Sale, error) {
	lines, method, err := normalizeCart(req)
	if err != nil {
		s.metrics.SaleFailed(failureReason(err))
		return domain.Sale{}, err
	}

	var committed domain.Sale
	err = s.repo.WithinTx(ctx, func(tx store.SaleTx) error {
		// Lock every product up front in id order so two carts sharing
		// products cannot deadlock. Missing ids are reported in cart order below.
		for _, id := range distinctProductIDs(lines) {
			if _, err := tx.GetProductForUpdate(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		subtotal := decimal.Zero
		profit := decimal.Zero
		items := make([]domain.SaleItem, 0, len(lines))

		for _, line := range lines {
			product, err := tx.GetProductForUpdate(ctx, line.ProductID)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			if err != nil {
				return err
			}
			if product.Stock < line.Quantity {
				return &store.InsufficientStockError{
					ProductID: product.ID,
					Name:      product.Name,
					Requested: line.Quantity,
					Available: product.Stock,
				}
			}

			qty := decimal.NewFromInt(int64(line.Quantity))
			subtotal = subtotal.Add(line.Price.Mul(qty))
			profit = profit.Add(line.Price.Sub(product.CostPrice).Mul(qty))

			if _, err := tx.DecrementStock(ctx, product.ID, line.Quantity); err != nil {
				return err
			}

			items = append(items, domain.SaleItem{
				ProductID: product.ID,
				Name:      product.Name,
				Quantity:  line.Quantity,
				Price:     line.Price,
			})
		}

		subtotal = round2(subtotal)
		tax := round2(subtotal.Mul(taxRate))
		discount := decimal.Zero
		sale := domain.Sale{
			ID:            xid.New("sale"),
			Items:         items,
			Subtotal:      subtotal,
			Tax:           tax,
			Discount:      discount,
			TotalAmount:   subtotal.Add(tax).Sub(discount),
			TotalProfit:   round2(profit),
			PaymentMethod: method,
			CreatedAt:     s.now().UTC(),
		}

		created, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		committed = *created
		return nil
	})
	if err != nil {
		s.metrics.SaleFailed(failureReason(err))
		if failureReason(err) == "internal" {
			s.logger.Error("sale commit failed", zap.Error(err), zap.String("actor", actorName(ctx)))
		}
		return domain.Sale{}, err
	}

	s.invalidateReports(ctx)

	units := 0
	for _, item := range committed.Items {
		units += item.Quantity
	}
	s.metrics.SaleCommitted(string(committed.PaymentMethod), units, committed.Subtotal.InexactFloat64())
	s.logger.Info("sale committed",
		zap.String("sale_id", committed.ID),
		zap.Int("lines", len(committed.Items)),
		zap.Int("units", units),
		zap.String("subtotal", committed.Subtotal.StringFixed(2)),
		zap.String("total_amount", committed.TotalAmount.StringFixed(2)),
		zap.String("payment_method", string(committed.PaymentMethod)),
		zap.String("actor", actorName(ctx)),
	)
	return committed, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func normalizeCart(req domain.CommitSaleRequest) ([]domain.CartLine, domain.PaymentMethod, error) {
	if len(req.Items) == 0 {
		return nil, "", ErrEmptyCart
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentCash
	}
	if !method.Valid() {
		return nil, "", validationError("paymentMethod must be Cash or Card")
	}

	lines := make([]domain.CartLine, 0, len(req.Items))
	for i, item := range req.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" {
			return nil, "", validationError("items[%d].productId is required", i)
		}
		if item.Quantity < 1 {
			return nil, "", validationError("items[%d].quantity must be at least 1", i)
		}
		if item.Price.IsNegative() {
			return nil, "", validationError("items[%d].price must not be negative", i)
		}
		item.Price = round2(item.Price)
		lines = append(lines, item)
	}
	return lines, method, nil
}

func distinctProductIDs(lines []domain.CartLine) []string {
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		set[line.ProductID] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}
