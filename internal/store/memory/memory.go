package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"habibdukan/backend/internal/domain"
	"habibdukan/backend/internal/store"
)

// Store keeps everything in process memory. A single RWMutex serializes
// writers, so a sale commit holds the write lock for its whole unit of work.
type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	sales     []domain.Sale
	salesByID map[string]int
	expenses  []domain.Expense
}

func New() *Store {
	return &Store{
		products:  make(map[string]domain.Product),
		sales:     make([]domain.Sale, 0, 64),
		salesByID: make(map[string]int),
		expenses:  make([]domain.Expense, 0, 32),
	}
}

// NewSeeded returns a store preloaded with a small demo catalog.
func NewSeeded() *Store {
	s := New()
	base := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	seed := []struct {
		number, name, category  string
		cost, retail, wholesale string
		stock                   int
		unit                    string
	}{
		{"HD-001", "Basmati Rice 5kg", "Grocery", "1450", "1750", "1650", 40, "bag"},
		{"HD-002", "Cooking Oil 1L", "Grocery", "520", "610", "580", 60, "bottle"},
		{"HD-003", "Sugar 1kg", "Grocery", "140", "165", "155", 80, "pcs"},
		{"HD-004", "Tea Leaves 475g", "Beverages", "980", "1150", "1090", 25, "pack"},
		{"HD-005", "Milk Pack 1L", "Dairy", "210", "250", "240", 8, "pcs"},
		{"HD-006", "Washing Powder 1kg", "Household", "380", "450", "430", 5, "pack"},
		{"HD-007", "Bath Soap", "Household", "95", "120", "110", 100, "pcs"},
		{"HD-008", "Biscuits Family Pack", "Snacks", "160", "200", "185", 12, "pack"},
	}
	for i, p := range seed {
		createdAt := base.Add(time.Duration(i) * time.Hour)
		id := "prd_seed_" + strings.ToLower(strings.TrimPrefix(p.number, "HD-"))
		s.products[id] = domain.Product{
			ID:             id,
			ProductNumber:  p.number,
			Name:           p.name,
			Category:       p.category,
			CostPrice:      decimal.RequireFromString(p.cost),
			RetailPrice:    decimal.RequireFromString(p.retail),
			WholesalePrice: decimal.RequireFromString(p.wholesale),
			Stock:          p.stock,
			Unit:           p.unit,
			CreatedAt:      createdAt,
			UpdatedAt:      createdAt,
		}
	}
	return s
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) ListProducts(_ context.Context, order domain.SortOrder) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sortProducts(products, order)
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) SearchProducts(_ context.Context, query string) ([]domain.Product, error) {
	needle := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.ProductNumber), needle) {
			matches = append(matches, p)
		}
	}
	sortProducts(matches, domain.SortNewest)
	return matches, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.ProductNumber == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, &store.DuplicateKeyError{Field: "id"}
	}
	if err := s.checkUniqueLocked(product); err != nil {
		return nil, err
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = product.CreatedAt
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, id string, patch store.ProductPatch) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	if patch.Name != nil {
		product.Name = *patch.Name
	}
	if patch.Category != nil {
		product.Category = *patch.Category
	}
	if patch.Unit != nil {
		product.Unit = *patch.Unit
	}
	if patch.CostPrice != nil {
		product.CostPrice = *patch.CostPrice
	}
	if patch.RetailPrice != nil {
		product.RetailPrice = *patch.RetailPrice
	}
	if patch.WholesalePrice != nil {
		product.WholesalePrice = *patch.WholesalePrice
	}
	if patch.Stock != nil {
		product.Stock = *patch.Stock
	}
	if err := s.checkUniqueLocked(product); err != nil {
		return nil, err
	}
	product.UpdatedAt = patch.UpdatedAt
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = time.Now().UTC()
	}
	s.products[id] = product
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) InventoryStats(_ context.Context, lowStockThreshold int) (domain.InventoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.InventoryStats{TotalProducts: len(s.products)}
	for _, p := range s.products {
		stats.TotalStock += p.Stock
		if p.Stock <= lowStockThreshold {
			stats.LowStockCount++
		}
	}
	return stats, nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.SaleTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &saleTx{store: s, staged: make(map[string]domain.Product)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, p := range tx.staged {
		s.products[id] = p
	}
	for _, sale := range tx.sales {
		s.salesByID[sale.ID] = len(s.sales)
		s.sales = append(s.sales, sale)
	}
	return nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale := cloneSale(s.sales[idx])
	return &sale, nil
}

func (s *Store) ListSaleTotals(_ context.Context, from time.Time, to time.Time) ([]domain.SaleTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make([]domain.SaleTotals, 0, 32)
	for _, sale := range s.sales {
		if !inRange(sale.CreatedAt, from, to) {
			continue
		}
		totals = append(totals, domain.SaleTotals{
			ID:          sale.ID,
			Subtotal:    sale.Subtotal,
			TotalProfit: sale.TotalProfit,
			CreatedAt:   sale.CreatedAt,
		})
	}
	return totals, nil
}

func (s *Store) AllTimeProfit(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, sale := range s.sales {
		total = total.Add(sale.TotalProfit)
	}
	return total, nil
}

func (s *Store) SoldQuantities(_ context.Context, from time.Time, to time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sold := make(map[string]int)
	for _, sale := range s.sales {
		if !inRange(sale.CreatedAt, from, to) {
			continue
		}
		for _, item := range sale.Items {
			sold[item.ProductID] += item.Quantity
		}
	}
	return sold, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, cloneSale(sale))
	}
	slices.SortStableFunc(sales, func(a, b domain.Sale) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return sales, nil
}

func (s *Store) UpdateSaleProfit(_ context.Context, id string, profit decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.salesByID[id]
	if !ok {
		return store.ErrNotFound
	}
	s.sales[idx].TotalProfit = profit
	return nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" || !expense.Amount.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenses = append(s.expenses, expense)
	return &expense, nil
}

func (s *Store) ListExpenses(_ context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, 16)
	for _, e := range s.expenses {
		if inRange(e.CreatedAt, from, to) {
			expenses = append(expenses, e)
		}
	}
	slices.SortStableFunc(expenses, func(a, b domain.Expense) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return expenses, nil
}

func (s *Store) checkUniqueLocked(product domain.Product) error {
	for id, other := range s.products {
		if id == product.ID {
			continue
		}
		if other.ProductNumber == product.ProductNumber {
			return &store.DuplicateKeyError{Field: "productNumber"}
		}
		if other.Name == product.Name {
			return &store.DuplicateKeyError{Field: "name"}
		}
	}
	return nil
}

type saleTx struct {
	store  *Store
	staged map[string]domain.Product
	sales  []domain.Sale
}

func (t *saleTx) GetProductForUpdate(_ context.Context, id string) (*domain.Product, error) {
	if p, ok := t.staged[id]; ok {
		return &p, nil
	}
	p, ok := t.store.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *saleTx) DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, error) {
	if qty < 1 {
		return nil, store.ErrInvalidInput
	}
	p, err := t.GetProductForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Stock < qty {
		return nil, &store.InsufficientStockError{ProductID: p.ID, Name: p.Name, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	t.staged[id] = *p
	return p, nil
}

func (t *saleTx) InsertSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := t.store.salesByID[sale.ID]; exists {
		return nil, store.ErrDuplicateKey
	}
	stored := cloneSale(sale)
	t.sales = append(t.sales, stored)
	out := cloneSale(stored)
	return &out, nil
}

func sortProducts(products []domain.Product, order domain.SortOrder) {
	slices.SortStableFunc(products, func(a, b domain.Product) int {
		switch order {
		case domain.SortOldest:
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
		case domain.SortByName:
			if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
				return c
			}
		default:
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func inRange(at time.Time, from time.Time, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}

func cloneSale(sale domain.Sale) domain.Sale {
	sale.Items = slices.Clone(sale.Items)
	return sale
}
