package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID int64
	// OrderNumber stays empty until the row has a generated id.
	OrderNumber       string
	Date              time.Time
	TotalPrice        decimal.Decimal
	CustomerID        int64
	DeliveryAddressID int64
	BillingAddressID  int64
	Lines             []OrderLine
}

type OrderLine struct {
	Position int
	Quantity int
	Item     BeverageRef
}

func (l OrderLine) Total() decimal.Decimal {
	return l.Item.Beverage().Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// BeverageRef references exactly one bottle or one crate. The zero value is
// invalid; build it with RefTo or DecodeRef.
type BeverageRef struct {
	kind     BeverageKind
	beverage Beverage
}

// RefTo wraps a catalog entry. The entry's kind selects the variant.
func RefTo(b Beverage) (BeverageRef, error) {
	if !b.Kind.Valid() || b.ID <= 0 {
		return BeverageRef{}, fmt.Errorf("beverage %q id %d: %w", b.Kind, b.ID, ErrMalformedLine)
	}
	return BeverageRef{kind: b.Kind, beverage: b}, nil
}

// DecodeRef rebuilds a reference from its stored columns. Exactly one of
// bottleID and crateID must be set and it must agree with kind.
func DecodeRef(kind BeverageKind, bottleID, crateID *int64) (BeverageKind, int64, error) {
	switch {
	case kind == KindBottle && bottleID != nil && crateID == nil:
		return KindBottle, *bottleID, nil
	case kind == KindCrate && crateID != nil && bottleID == nil:
		return KindCrate, *crateID, nil
	}
	return "", 0, fmt.Errorf("kind %q bottle_id set=%t crate_id set=%t: %w",
		kind, bottleID != nil, crateID != nil, ErrMalformedLine)
}

func (r BeverageRef) Valid() bool {
	return r.kind.Valid() && r.beverage.ID > 0
}

func (r BeverageRef) Kind() BeverageKind {
	return r.kind
}

func (r BeverageRef) Beverage() Beverage {
	return r.beverage
}

func (r BeverageRef) BottleID() (int64, bool) {
	if r.kind == KindBottle {
		return r.beverage.ID, true
	}
	return 0, false
}

func (r BeverageRef) CrateID() (int64, bool) {
	if r.kind == KindCrate {
		return r.beverage.ID, true
	}
	return 0, false
}
