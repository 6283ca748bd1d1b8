package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"habibdukan/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
)

// InsufficientStockError names the product whose stock could not cover a request.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s", e.Name)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// DuplicateKeyError reports which unique field clashed.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("product with this %s already exists", e.Field)
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}

// ProductPatch names the columns a product edit sets. A nil field is not
// written, so an edit that leaves Stock nil cannot undo a concurrent sale.
type ProductPatch struct {
	Name           *string
	Category       *string
	Unit           *string
	CostPrice      *decimal.Decimal
	RetailPrice    *decimal.Decimal
	WholesalePrice *decimal.Decimal
	Stock          *int
	UpdatedAt      time.Time
}

// SaleTx is the view of storage available inside a sale commit. Reads see
// earlier writes of the same transaction.
type SaleTx interface {
	GetProductForUpdate(ctx context.Context, id string) (*domain.Product, error)
	// DecrementStock fails with an *InsufficientStockError when stock < qty.
	DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, error)
	InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
}

type ProductRepository interface {
	ListProducts(ctx context.Context, order domain.SortOrder) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	// UpdateProduct applies patch to the stored row in one write and returns
	// the result. Fields left nil keep their stored value.
	UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	InventoryStats(ctx context.Context, lowStockThreshold int) (domain.InventoryStats, error)
}

type SaleRepository interface {
	// WithinTx runs fn in one atomic unit. A non-nil error from fn discards
	// every write made through tx.
	WithinTx(ctx context.Context, fn func(tx SaleTx) error) error
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	// ListSaleTotals returns sales with from <= createdAt < to.
	ListSaleTotals(ctx context.Context, from time.Time, to time.Time) ([]domain.SaleTotals, error)
	AllTimeProfit(ctx context.Context) (decimal.Decimal, error)
	SoldQuantities(ctx context.Context, from time.Time, to time.Time) (map[string]int, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	UpdateSaleProfit(ctx context.Context, id string, profit decimal.Decimal) error
}

type ExpenseRepository interface {
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	// ListExpenses returns expenses with from <= createdAt < to.
	ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error)
}

type Repository interface {
	ProductRepository
	SaleRepository
	ExpenseRepository
	Ping(ctx context.Context) error
}
