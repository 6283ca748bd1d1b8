package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money travels as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	RoleOwner   = "owner"
	RoleCashier = "cashier"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "Cash"
	PaymentCard PaymentMethod = "Card"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCash || p == PaymentCard
}

type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
	SortByName SortOrder = "name"
)

type Product struct {
	ID             string          `json:"id" db:"id"`
	ProductNumber  string          `json:"productNumber" db:"product_number"`
	Name           string          `json:"name" db:"name"`
	Category       string          `json:"category" db:"category"`
	CostPrice      decimal.Decimal `json:"costPrice" db:"cost_price"`
	RetailPrice    decimal.Decimal `json:"retailPrice" db:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesalePrice" db:"wholesale_price"`
	Stock          int             `json:"stock" db:"stock"`
	Unit           string          `json:"unit" db:"unit"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

type ProductCreateRequest struct {
	ProductNumber  string           `json:"productNumber" validate:"required,max=64"`
	Name           string           `json:"name" validate:"required,max=200"`
	Category       string           `json:"category" validate:"required,max=100"`
	CostPrice      decimal.Decimal  `json:"costPrice" validate:"gte=0"`
	RetailPrice    decimal.Decimal  `json:"retailPrice" validate:"gte=0"`
	WholesalePrice *decimal.Decimal `json:"wholesalePrice,omitempty" validate:"omitnil,gte=0"`
	Stock          int              `json:"stock" validate:"gte=0"`
	Unit           string           `json:"unit,omitempty" validate:"max=20"`
}

type ProductUpdateRequest struct {
	Name           *string          `json:"name,omitempty" validate:"omitnil,min=1,max=200"`
	Category       *string          `json:"category,omitempty" validate:"omitnil,min=1,max=100"`
	CostPrice      *decimal.Decimal `json:"costPrice,omitempty" validate:"omitnil,gte=0"`
	RetailPrice    *decimal.Decimal `json:"retailPrice,omitempty" validate:"omitnil,gte=0"`
	WholesalePrice *decimal.Decimal `json:"wholesalePrice,omitempty" validate:"omitnil,gte=0"`
	Stock          *int             `json:"stock,omitempty" validate:"omitnil,gte=0"`
	Unit           *string          `json:"unit,omitempty" validate:"omitnil,min=1,max=20"`
}

func (r ProductUpdateRequest) Empty() bool {
	return r.Name == nil && r.Category == nil && r.CostPrice == nil && r.RetailPrice == nil &&
		r.WholesalePrice == nil && r.Stock == nil && r.Unit == nil
}

type SaleItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (i SaleItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Sale struct {
	ID            string          `json:"id"`
	Items         []SaleItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Discount      decimal.Decimal `json:"discount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	TotalProfit   decimal.Decimal `json:"totalProfit"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type CartLine struct {
	ProductID string          `json:"productId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
}

type CommitSaleRequest struct {
	Items         []CartLine    `json:"items" validate:"dive"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty" validate:"omitempty,oneof=Cash Card"`
}

// SaleTotals is the projection the aggregator buckets; items are not loaded.
type SaleTotals struct {
	ID          string          `db:"id"`
	Subtotal    decimal.Decimal `db:"subtotal"`
	TotalProfit decimal.Decimal `db:"total_profit"`
	CreatedAt   time.Time       `db:"created_at"`
}

type Expense struct {
	ID          string          `json:"id" db:"id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Description string          `json:"description" db:"description"`
	Category    string          `json:"category" db:"category"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

type ExpenseCreateRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description" validate:"max=500"`
	Category    string          `json:"category" validate:"max=100"`
}

type DailySales struct {
	Date        string          `json:"date"`
	TotalSales  decimal.Decimal `json:"totalSales"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
}

type DailyExpense struct {
	Date         string          `json:"date"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
}

type InventoryStats struct {
	TotalProducts int `json:"totalProducts"`
	TotalStock    int `json:"totalStock"`
	LowStockCount int `json:"lowStockCount"`
}

type Dashboard struct {
	InventoryStats
	TodaysSales   decimal.Decimal `json:"todaysSales"`
	TodaysProfit  decimal.Decimal `json:"todaysProfit"`
	AllTimeProfit decimal.Decimal `json:"allTimeProfit"`
	TotalProfit   decimal.Decimal `json:"totalProfit"`
	Date          string          `json:"date"`
}

type BestDay struct {
	Date       string          `json:"date"`
	TotalSales decimal.Decimal `json:"totalSales"`
}

type SalesSummary struct {
	StartDate           string          `json:"startDate"`
	EndDate             string          `json:"endDate"`
	Days                int             `json:"days"`
	ActiveDays          int             `json:"activeDays"`
	TotalSales          decimal.Decimal `json:"totalSales"`
	TotalProfit         decimal.Decimal `json:"totalProfit"`
	TotalExpense        decimal.Decimal `json:"totalExpense"`
	NetProfit           decimal.Decimal `json:"netProfit"`
	AverageDailySales   decimal.Decimal `json:"averageDailySales"`
	ProfitMarginPercent decimal.Decimal `json:"profitMarginPercent"`
	BestDay             *BestDay        `json:"bestDay,omitempty"`
	LastDaySales        decimal.Decimal `json:"lastDaySales"`
	SalesTrendPercent   decimal.Decimal `json:"salesTrendPercent"`
}

type RestockSuggestion struct {
	ProductID         string           `json:"productId"`
	ProductNumber     string           `json:"productNumber"`
	Name              string           `json:"name"`
	Stock             int              `json:"stock"`
	SoldLastWindow    int              `json:"soldLastWindow"`
	DailyVelocity     decimal.Decimal  `json:"dailyVelocity"`
	DaysOfCover       *decimal.Decimal `json:"daysOfCover,omitempty"`
	SuggestedQuantity int              `json:"suggestedQuantity"`
	Urgency           string           `json:"urgency"`
}

type RecalculationResult struct {
	Scanned         int      `json:"scanned"`
	Updated         int      `json:"updated"`
	Unchanged       int      `json:"unchanged"`
	Skipped         int      `json:"skipped"`
	MissingProducts []string `json:"missingProducts"`
	DryRun          bool     `json:"dryRun"`
}

type InvoiceLine struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	LineTotal string `json:"lineTotal"`
}

type Invoice struct {
	Sale        Sale          `json:"sale"`
	ShopName    string        `json:"shopName"`
	IssuedAt    string        `json:"issuedAt"`
	Lines       []InvoiceLine `json:"lines"`
	Subtotal    string        `json:"subtotal"`
	Tax         string        `json:"tax"`
	Discount    string        `json:"discount"`
	Total       string        `json:"total"`
	PreviewText string        `json:"previewText"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expiresAt"`
}

type Actor struct {
	Username string
	Role     string
}
