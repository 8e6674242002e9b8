package domain

import (
	"fmt"
	"time"
)

// GenerateOrderNumber derives the public order number from the row id and the
// order date, e.g. id 42 in March 2024 gives ORD240300042.
func GenerateOrderNumber(orderID int64, at time.Time) (string, error) {
	if orderID <= 0 {
		return "", fmt.Errorf("order number needs a generated id, got %d: %w", orderID, ErrInvalidOperation)
	}
	return fmt.Sprintf("ORD%02d%02d%05d", at.Year()%100, int(at.Month()), orderID), nil
}
