package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"habibdukan/backend/internal/domain"
	"habibdukan/backend/internal/store"
	"habibdukan/backend/internal/xid"
)

func ParseSortOrder(raw string) (domain.SortOrder, error) {
	switch domain.SortOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case "", domain.SortNewest:
		return domain.SortNewest, nil
	case domain.SortOldest:
		return domain.SortOldest, nil
	case domain.SortByName:
		return domain.SortByName, nil
	default:
		return "", validationError("unknown sort order %q", raw)
	}
}

func (s *Service) ListProducts(ctx context.Context, order domain.SortOrder) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, order)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// SearchProducts matches query as a case-insensitive substring of the product
// number. An empty result is reported as store.ErrNotFound.
func (s *Service) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationError("search query is required")
	}
	products, err := s.repo.SearchProducts(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("no products match %q: %w", query, store.ErrNotFound)
	}
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.ProductNumber = strings.ToUpper(strings.TrimSpace(req.ProductNumber))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Unit = strings.TrimSpace(req.Unit)

	if req.ProductNumber == "" || req.Name == "" || req.Category == "" {
		return domain.Product{}, validationError("productNumber, name and category are required")
	}
	wholesale := decimal.Zero
	if req.WholesalePrice != nil {
		wholesale = *req.WholesalePrice
	}
	if req.CostPrice.IsNegative() || req.RetailPrice.IsNegative() || wholesale.IsNegative() {
		return domain.Product{}, validationError("prices must not be negative")
	}
	if req.Stock < 0 {
		return domain.Product{}, validationError("stock must not be negative")
	}
	if req.Unit == "" {
		req.Unit = defaultUnit
	}

	now := s.now().UTC()
	product := domain.Product{
		ID:             xid.New("prd"),
		ProductNumber:  req.ProductNumber,
		Name:           req.Name,
		Category:       req.Category,
		CostPrice:      round2(req.CostPrice),
		RetailPrice:    round2(req.RetailPrice),
		WholesalePrice: round2(wholesale),
		Stock:          req.Stock,
		Unit:           req.Unit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("product created",
		zap.String("product_id", created.ID),
		zap.String("product_number", created.ProductNumber),
		zap.Int("stock", created.Stock),
		zap.String("actor", actorName(ctx)),
	)
	return *created, nil
}

// UpdateProduct applies only the fields present in req. The repository
// writes them in a single statement, so stock sold while the edit was in
// flight is kept unless the request sets stock itself.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if req.Empty() {
		return domain.Product{}, validationError("no fields to update")
	}

	patch := store.ProductPatch{Stock: req.Stock, UpdatedAt: s.now().UTC()}
	for _, field := range []struct {
		in  *string
		out **string
	}{
		{req.Name, &patch.Name},
		{req.Category, &patch.Category},
		{req.Unit, &patch.Unit},
	} {
		if field.in == nil {
			continue
		}
		trimmed := strings.TrimSpace(*field.in)
		if trimmed == "" {
			return domain.Product{}, validationError("name, category and unit must not be empty")
		}
		*field.out = &trimmed
	}
	for _, field := range []struct {
		in  *decimal.Decimal
		out **decimal.Decimal
	}{
		{req.CostPrice, &patch.CostPrice},
		{req.RetailPrice, &patch.RetailPrice},
		{req.WholesalePrice, &patch.WholesalePrice},
	} {
		if field.in == nil {
			continue
		}
		if field.in.IsNegative() {
			return domain.Product{}, validationError("prices must not be negative")
		}
		rounded := round2(*field.in)
		*field.out = &rounded
	}
	if req.Stock != nil && *req.Stock < 0 {
		return domain.Product{}, validationError("stock must not be negative")
	}

	updated, err := s.repo.UpdateProduct(ctx, strings.TrimSpace(id), patch)
	if err != nil {
		return domain.Product{}, err
	}

	fields := []zap.Field{
		zap.String("product_id", updated.ID),
		zap.Int("stock", updated.Stock),
		zap.String("actor", actorName(ctx)),
	}
	if req.Stock != nil {
		fields = append(fields, zap.Bool("stock_set", true))
	}
	if req.CostPrice != nil {
		fields = append(fields, zap.String("cost_price", updated.CostPrice.StringFixed(2)))
	}
	s.logger.Info("product updated", fields...)
	return *updated, nil
}

// DeleteProduct removes the product outright. Past sales keep their own
// name and price snapshots, so nothing else is touched.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("product_id", id), zap.String("actor", actorName(ctx)))
	return nil
}

func (s *Service) RestockSuggestions(ctx context.Context) ([]domain.RestockSuggestion, error) {
	products, err := s.repo.ListProducts(ctx, domain.SortNewest)
	if err != nil {
		return nil, err
	}

	today := s.today()
	from := addDays(today, -(s.restock.WindowDays() - 1))
	to := addDays(today, 1)
	sold, err := s.repo.SoldQuantities(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return s.restock.Suggest(products, sold), nil
}
