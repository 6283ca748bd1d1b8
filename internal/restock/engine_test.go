package restock

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habibdukan/backend/internal/domain"
)

func product(id string, name string, stock int) domain.Product {
	return domain.Product{ID: id, ProductNumber: "N-" + id, Name: name, Stock: stock}
}

func TestSuggestSkipsHealthyStock(t *testing.T) {
	e := NewEngine(7, 14, 10)
	got := e.Suggest([]domain.Product{product("a", "Rice", 100)}, map[string]int{"a": 7})
	assert.Empty(t, got)
}

func TestSuggestLowStockWithoutSales(t *testing.T) {
	e := NewEngine(7, 14, 10)
	got := e.Suggest([]domain.Product{product("a", "Milk", 4)}, nil)

	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].SuggestedQuantity)
	assert.Nil(t, got[0].DaysOfCover)
	assert.Equal(t, UrgencyCritical, got[0].Urgency)
	assert.True(t, got[0].DailyVelocity.IsZero())
}

func TestSuggestUsesVelocityForTarget(t *testing.T) {
	e := NewEngine(7, 14, 10)
	// 35 sold in 7 days: 5 per day, 14 days of cover needs 70 units.
	got := e.Suggest([]domain.Product{product("a", "Sugar", 20)}, map[string]int{"a": 35})

	require.Len(t, got, 1)
	assert.True(t, got[0].DailyVelocity.Equal(decimal.NewFromInt(5)))
	require.NotNil(t, got[0].DaysOfCover)
	assert.True(t, got[0].DaysOfCover.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 50, got[0].SuggestedQuantity)
	assert.Equal(t, UrgencyLow, got[0].Urgency)
}

func TestSuggestOrdersByUrgency(t *testing.T) {
	e := NewEngine(7, 14, 10)
	got := e.Suggest([]domain.Product{
		product("a", "Soap", 9),
		product("b", "Oil", 0),
		product("c", "Tea", 2),
	}, map[string]int{"c": 14})

	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].ProductID)
	assert.Equal(t, "c", got[1].ProductID)
	assert.Equal(t, "a", got[2].ProductID)
}
