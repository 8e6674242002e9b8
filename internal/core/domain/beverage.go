package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type BeverageKind string

const (
	KindBottle BeverageKind = "BOTTLE"
	KindCrate  BeverageKind = "CRATE"
)

func (k BeverageKind) Valid() bool {
	return k == KindBottle || k == KindCrate
}

func (k BeverageKind) String() string {
	return string(k)
}

// ParseBeverageKind accepts "bottle", "BOTTLE", "bottles" and the crate
// equivalents.
func ParseBeverageKind(s string) (BeverageKind, error) {
	switch strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), "S") {
	case string(KindBottle):
		return KindBottle, nil
	case string(KindCrate):
		return KindCrate, nil
	}
	return "", fmt.Errorf("unknown beverage kind %q: %w", s, ErrInvalidOperation)
}

// Beverage is a catalog entry as read from the stock ledger. Bottle and crate
// specific fields are zero for the other kind.
type Beverage struct {
	ID      int64
	Kind    BeverageKind
	Name    string
	PicURL  string
	Price   decimal.Decimal
	InStock int

	Volume        decimal.Decimal
	VolumePercent decimal.Decimal
	Supplier      string

	NoOfBottles int
	BottleID    int64
}

var picURLPattern = regexp.MustCompile(`^https://.*\.(?:jpg|gif|png)$`)

// Validate checks a catalog entry before it is created or updated.
func (b Beverage) Validate() error {
	invalid := func(msg string) error {
		return fmt.Errorf("%s %s: %w", strings.ToLower(b.Kind.String()), msg, ErrInvalidOperation)
	}

	if !b.Kind.Valid() {
		return fmt.Errorf("beverage kind %q: %w", b.Kind, ErrInvalidOperation)
	}
	if strings.TrimSpace(b.Name) == "" {
		return invalid("name is required")
	}
	if !picURLPattern.MatchString(b.PicURL) {
		return invalid("picture url must be an https link to a jpg, gif or png")
	}
	if !b.Price.IsPositive() {
		return invalid("price must be more than zero")
	}
	if b.InStock < 0 {
		return invalid("stock must not be negative")
	}

	switch b.Kind {
	case KindBottle:
		if !b.Volume.IsPositive() {
			return invalid("volume must be more than zero")
		}
		if b.VolumePercent.IsNegative() {
			return invalid("volume percent must not be negative")
		}
		if strings.TrimSpace(b.Supplier) == "" {
			return invalid("supplier is required")
		}
	case KindCrate:
		if b.NoOfBottles <= 0 {
			return invalid("number of bottles must be more than zero")
		}
		if b.BottleID <= 0 {
			return invalid("bottle is required")
		}
	}
	return nil
}

// Listing is a catalog entry paired with the quantity the requesting session
// may still add to its cart.
type Listing struct {
	Beverage
	AllowedInStock int
}
