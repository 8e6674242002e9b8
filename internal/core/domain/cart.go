package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one beverage in a session cart. Price, display fields and stock
// are captured when the line is created and are not refreshed afterwards.
type CartLine struct {
	ID            int             `json:"id"`
	Kind          BeverageKind    `json:"kind"`
	BeverageID    int64           `json:"beverage_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Name          string          `json:"name"`
	PicURL        string          `json:"pic_url"`
	Volume        decimal.Decimal `json:"volume"`
	VolumePercent decimal.Decimal `json:"volume_percent"`
	Supplier      string          `json:"supplier,omitempty"`
	NoOfBottles   int             `json:"no_of_bottles,omitempty"`
	InStock       int             `json:"in_stock"`
}

// NewCartLine maps a catalog entry into a cart line. The line id is assigned
// when the line is appended to a cart.
func NewCartLine(b Beverage, quantity int) CartLine {
	line := CartLine{
		Kind:       b.Kind,
		BeverageID: b.ID,
		Quantity:   quantity,
		UnitPrice:  b.Price,
		Name:       b.Name,
		PicURL:     b.PicURL,
		InStock:    b.InStock,
	}
	switch b.Kind {
	case KindBottle:
		line.Volume = b.Volume
		line.VolumePercent = b.VolumePercent
		line.Supplier = b.Supplier
	case KindCrate:
		line.NoOfBottles = b.NoOfBottles
	}
	return line
}

func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the working set of one customer session. It is not safe for
// concurrent use; callers serialize access per session.
type Cart struct {
	SessionID  string     `json:"session_id"`
	Lines      []CartLine `json:"lines"`
	LastLineID int        `json:"last_line_id"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func NewCart(sessionID string) *Cart {
	return &Cart{SessionID: sessionID, Lines: []CartLine{}}
}

// Line returns the line holding (kind, beverageID), if any.
func (c *Cart) Line(kind BeverageKind, beverageID int64) (CartLine, bool) {
	if i := c.indexOf(kind, beverageID); i >= 0 {
		return c.Lines[i], true
	}
	return CartLine{}, false
}

// Increase adds quantity to an existing line. The result is checked against
// the stock captured on the line, not against the live ledger.
func (c *Cart) Increase(kind BeverageKind, beverageID int64, quantity int) (CartLine, error) {
	if quantity <= 0 {
		return CartLine{}, ErrInvalidQuantity
	}
	i := c.indexOf(kind, beverageID)
	if i < 0 {
		return CartLine{}, fmt.Errorf("%s %d not in cart: %w", kind, beverageID, ErrNotFound)
	}
	line := &c.Lines[i]
	if line.Quantity+quantity > line.InStock {
		return CartLine{}, fmt.Errorf("%s %d: %w", kind, beverageID, ErrInsufficientStock)
	}
	line.Quantity += quantity
	c.touch()
	return *line, nil
}

// Append adds a new line and assigns it the next line id. A line for the
// same beverage must not already exist.
func (c *Cart) Append(line CartLine) (CartLine, error) {
	if line.Quantity <= 0 {
		return CartLine{}, ErrInvalidQuantity
	}
	if c.indexOf(line.Kind, line.BeverageID) >= 0 {
		return CartLine{}, fmt.Errorf("%s %d already in cart: %w", line.Kind, line.BeverageID, ErrInvalidOperation)
	}
	if line.Quantity > line.InStock {
		return CartLine{}, fmt.Errorf("%s %d: %w", line.Kind, line.BeverageID, ErrInsufficientStock)
	}
	c.LastLineID++
	line.ID = c.LastLineID
	c.Lines = append(c.Lines, line)
	c.touch()
	return line, nil
}

func (c *Cart) Remove(lineID int) error {
	for i, l := range c.Lines {
		if l.ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.touch()
			return nil
		}
	}
	return fmt.Errorf("cart line %d: %w", lineID, ErrNotFound)
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []CartLine {
	out := make([]CartLine, len(c.Lines))
	copy(out, c.Lines)
	return out
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Total())
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// QuantityOf returns how many units of the beverage the cart already holds.
func (c *Cart) QuantityOf(kind BeverageKind, beverageID int64) int {
	if l, ok := c.Line(kind, beverageID); ok {
		return l.Quantity
	}
	return 0
}

// Clear empties the cart and restarts line numbering.
func (c *Cart) Clear() {
	c.Lines = []CartLine{}
	c.LastLineID = 0
	c.touch()
}

func (c *Cart) indexOf(kind BeverageKind, beverageID int64) int {
	for i, l := range c.Lines {
		if l.Kind == kind && l.BeverageID == beverageID {
			return i
		}
	}
	return -1
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
