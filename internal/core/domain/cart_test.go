package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bottle(id int64, price string, stock int) Beverage {
	return Beverage{
		ID: id, Kind: KindBottle, Name: "Bottle", Price: decimal.RequireFromString(price), InStock: stock,
		Volume: decimal.RequireFromString("0.5"), VolumePercent: decimal.RequireFromString("4.8"), Supplier: "Brewery",
	}
}

func crate(id int64, price string, stock int) Beverage {
	return Beverage{
		ID: id, Kind: KindCrate, Name: "Crate", Price: decimal.RequireFromString(price), InStock: stock,
		NoOfBottles: 20, BottleID: 1,
	}
}

func TestCart_RepeatedAddsKeepOneLine(t *testing.T) {
	cart := NewCart("s")
	_, err := cart.Append(NewCartLine(bottle(3, "1.5", 100), 2))
	require.NoError(t, err)

	for _, qty := range []int{1, 4, 7} {
		_, err := cart.Increase(KindBottle, 3, qty)
		require.NoError(t, err)
	}

	require.Len(t, cart.Items(), 1)
	assert.Equal(t, 14, cart.QuantityOf(KindBottle, 3))
	assert.Equal(t, 14, cart.ItemCount())
}

func TestCart_TotalIsSumOfLines(t *testing.T) {
	cart := NewCart("s")
	_, err := cart.Append(NewCartLine(crate(7, "10.0", 5), 2))
	require.NoError(t, err)
	_, err = cart.Append(NewCartLine(bottle(3, "1.5", 5), 3))
	require.NoError(t, err)

	want := decimal.Zero
	for _, l := range cart.Items() {
		want = want.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	assert.True(t, cart.Total().Equal(want))
	assert.True(t, cart.Total().Equal(decimal.RequireFromString("24.5")))
	assert.Equal(t, 5, cart.ItemCount())
}

func TestCart_LineIDsIncrease(t *testing.T) {
	cart := NewCart("s")
	a, err := cart.Append(NewCartLine(bottle(1, "1", 5), 1))
	require.NoError(t, err)
	b, err := cart.Append(NewCartLine(bottle(2, "1", 5), 1))
	require.NoError(t, err)
	require.NoError(t, cart.Remove(a.ID))
	c, err := cart.Append(NewCartLine(bottle(3, "1", 5), 1))
	require.NoError(t, err)

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.Equal(t, 3, c.ID)

	items := cart.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), items[0].BeverageID)
	assert.Equal(t, int64(3), items[1].BeverageID)
}

func TestCart_InsufficientStockLeavesCartUnchanged(t *testing.T) {
	cart := NewCart("s")
	_, err := cart.Append(NewCartLine(bottle(5, "1", 10), 20))
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.True(t, cart.IsEmpty())
	assert.Zero(t, cart.LastLineID)

	_, err = cart.Append(NewCartLine(bottle(5, "1", 10), 8))
	require.NoError(t, err)
	_, err = cart.Increase(KindBottle, 5, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 8, cart.QuantityOf(KindBottle, 5))
}

func TestCart_RemoveUnknownLine(t *testing.T) {
	cart := NewCart("s")
	_, err := cart.Append(NewCartLine(bottle(1, "1", 5), 1))
	require.NoError(t, err)

	assert.ErrorIs(t, cart.Remove(99), ErrNotFound)
	assert.Equal(t, 1, cart.ItemCount())
}

func TestCart_InvalidQuantity(t *testing.T) {
	cart := NewCart("s")
	_, err := cart.Append(NewCartLine(bottle(1, "1", 5), 0))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = cart.Append(NewCartLine(bottle(1, "1", 5), 1))
	require.NoError(t, err)
	_, err = cart.Increase(KindBottle, 1, -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCart_DuplicateAppendRejected(t *testing.T) {
	cart := NewCart("s")
	_, err := cart.Append(NewCartLine(bottle(1, "1", 5), 1))
	require.NoError(t, err)
	_, err = cart.Append(NewCartLine(bottle(1, "1", 5), 1))
	assert.ErrorIs(t, err, ErrInvalidOperation)

	// same id, other kind is a different line
	_, err = cart.Append(NewCartLine(crate(1, "9", 5), 1))
	assert.NoError(t, err)
}

func TestCart_ClearResetsLineIDs(t *testing.T) {
	cart := NewCart("s")
	_, err := cart.Append(NewCartLine(bottle(1, "1", 5), 1))
	require.NoError(t, err)
	cart.Clear()

	assert.True(t, cart.IsEmpty())
	assert.Zero(t, cart.ItemCount())
	assert.True(t, cart.Total().IsZero())

	line, err := cart.Append(NewCartLine(bottle(2, "1", 5), 1))
	require.NoError(t, err)
	assert.Equal(t, 1, line.ID)
}

func TestNewCartLine_KindSpecificFields(t *testing.T) {
	b := NewCartLine(bottle(1, "1.20", 5), 1)
	assert.Equal(t, "Brewery", b.Supplier)
	assert.Zero(t, b.NoOfBottles)

	c := NewCartLine(crate(2, "12", 5), 1)
	assert.Equal(t, 20, c.NoOfBottles)
	assert.Empty(t, c.Supplier)
	assert.True(t, c.Volume.IsZero())
}
