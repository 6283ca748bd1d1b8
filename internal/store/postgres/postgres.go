package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"habibdukan/backend/internal/domain"
	"habibdukan/backend/internal/store"
)

const productColumns = `id, product_number, name, category, cost_price, retail_price, wholesale_price, stock, unit, created_at, updated_at`

type Store struct {
	db *sqlx.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle; used by tests and tools that manage
// the connection themselves.
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ListProducts(ctx context.Context, order domain.SortOrder) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 128)
	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY %s`, productColumns, orderClause(order))
	if err := s.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.GetContext(ctx, &product, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 16)
	err := s.db.SelectContext(ctx, &products, `
		SELECT `+productColumns+`
		FROM products
		WHERE product_number ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at DESC, id
	`, escapeLike(strings.TrimSpace(query)))
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.ProductNumber == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = product.CreatedAt
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :product_number, :name, :category, :cost_price, :retail_price, :wholesale_price, :stock, :unit, :created_at, :updated_at)
	`, product)
	if err != nil {
		return nil, mapWriteError(err)
	}

	created := product
	return &created, nil
}

// UpdateProduct writes only the columns set in patch. COALESCE keeps the
// stored value for NULL parameters, so stock is never rewritten from a stale read.
func (s *Store) UpdateProduct(ctx context.Context, id string, patch store.ProductPatch) (*domain.Product, error) {
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if patch.UpdatedAt.IsZero() {
		patch.UpdatedAt = time.Now().UTC()
	}

	var updated domain.Product
	err := s.db.GetContext(ctx, &updated, `
		UPDATE products
		SET name = COALESCE($2, name),
		    category = COALESCE($3, category),
		    cost_price = COALESCE($4, cost_price),
		    retail_price = COALESCE($5, retail_price),
		    wholesale_price = COALESCE($6, wholesale_price),
		    stock = COALESCE($7, stock),
		    unit = COALESCE($8, unit),
		    updated_at = $9
		WHERE id = $1
		RETURNING `+productColumns,
		id, nullable(patch.Name), nullable(patch.Category), nullable(patch.CostPrice),
		nullable(patch.RetailPrice), nullable(patch.WholesalePrice), nullable(patch.Stock),
		nullable(patch.Unit), patch.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapWriteError(err)
	}
	return &updated, nil
}

// nullable turns a nil pointer into an untyped NULL parameter.
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InventoryStats(ctx context.Context, lowStockThreshold int) (domain.InventoryStats, error) {
	var stats domain.InventoryStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(stock), 0), COUNT(*) FILTER (WHERE stock <= $1)
		FROM products
	`, lowStockThreshold).Scan(&stats.TotalProducts, &stats.TotalStock, &stats.LowStockCount)
	if err != nil {
		return domain.InventoryStats{}, err
	}
	return stats, nil
}

// WithinTx runs fn inside a single database transaction. Product rows touched
// through the SaleTx are locked with SELECT ... FOR UPDATE until commit.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.SaleTx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&saleTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type saleRow struct {
	ID            string          `db:"id"`
	Items         []byte          `db:"items"`
	Subtotal      decimal.Decimal `db:"subtotal"`
	Tax           decimal.Decimal `db:"tax"`
	Discount      decimal.Decimal `db:"discount"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	TotalProfit   decimal.Decimal `db:"total_profit"`
	PaymentMethod string          `db:"payment_method"`
	CreatedAt     time.Time       `db:"created_at"`
}

const saleColumns = `id, items, subtotal, tax, discount, total_amount, total_profit, payment_method, created_at`

func (r saleRow) toDomain() (domain.Sale, error) {
	var items []domain.SaleItem
	if err := json.Unmarshal(r.Items, &items); err != nil {
		return domain.Sale{}, fmt.Errorf("decode items of sale %s: %w", r.ID, err)
	}
	return domain.Sale{
		ID:            r.ID,
		Items:         items,
		Subtotal:      r.Subtotal,
		Tax:           r.Tax,
		Discount:      r.Discount,
		TotalAmount:   r.TotalAmount,
		TotalProfit:   r.TotalProfit,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		CreatedAt:     r.CreatedAt,
	}, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var row saleRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSaleTotals(ctx context.Context, from time.Time, to time.Time) ([]domain.SaleTotals, error) {
	totals := make([]domain.SaleTotals, 0, 64)
	err := s.db.SelectContext(ctx, &totals, `
		SELECT id, subtotal, total_profit, created_at
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (s *Store) AllTimeProfit(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := s.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(total_profit), 0) FROM sales`); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Store) SoldQuantities(ctx context.Context, from time.Time, to time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item->>'productId', SUM((item->>'quantity')::int)
		FROM sales, jsonb_array_elements(items) AS item
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY 1
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sold := make(map[string]int)
	for rows.Next() {
		var productID string
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		sold[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sold, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows := make([]saleRow, 0, 256)
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+saleColumns+` FROM sales ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, len(rows))
	for _, row := range rows {
		sale, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func (s *Store) UpdateSaleProfit(ctx context.Context, id string, profit decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sales SET total_profit = $2 WHERE id = $1`, id, profit)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" || !expense.Amount.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO expenses (id, amount, description, category, created_at)
		VALUES (:id, :amount, :description, :category, :created_at)
	`, expense)
	if err != nil {
		return nil, mapWriteError(err)
	}

	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	expenses := make([]domain.Expense, 0, 32)
	err := s.db.SelectContext(ctx, &expenses, `
		SELECT id, amount, description, category, created_at
		FROM expenses
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

type saleTx struct {
	tx *sqlx.Tx
}

func (t *saleTx) GetProductForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := t.tx.GetContext(ctx, &product, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (t *saleTx) DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, error) {
	if qty < 1 {
		return nil, store.ErrInvalidInput
	}

	var product domain.Product
	err := t.tx.GetContext(ctx, &product, `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING `+productColumns, id, qty)
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var current struct {
		Name  string `db:"name"`
		Stock int    `db:"stock"`
	}
	if err := t.tx.GetContext(ctx, &current, `SELECT name, stock FROM products WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return nil, &store.InsufficientStockError{ProductID: id, Name: current.Name, Requested: qty, Available: current.Stock}
}

func (t *saleTx) InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sale.ID, items, sale.Subtotal, sale.Tax, sale.Discount, sale.TotalAmount, sale.TotalProfit,
		string(sale.PaymentMethod), sale.CreatedAt.UTC())
	if err != nil {
		return nil, mapWriteError(err)
	}

	created := sale
	return &created, nil
}

func orderClause(order domain.SortOrder) string {
	switch order {
	case domain.SortOldest:
		return "created_at ASC, id"
	case domain.SortByName:
		return "lower(name) ASC, id"
	default:
		return "created_at DESC, id"
	}
}

func escapeLike(val string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(val)
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case "products_product_number_key":
			return &store.DuplicateKeyError{Field: "productNumber"}
		case "products_name_key":
			return &store.DuplicateKeyError{Field: "name"}
		default:
			return fmt.Errorf("%w: %s", store.ErrDuplicateKey, pgErr.ConstraintName)
		}
	case "23514":
		return fmt.Errorf("%w: %s", store.ErrInvalidInput, pgErr.ConstraintName)
	}
	return err
}
