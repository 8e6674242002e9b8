package domain

import (
	"fmt"
	"regexp"
	"strings"
)

type Customer struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Email     string
}

func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

type Address struct {
	ID          int64
	CustomerID  int64
	Name        string
	Street      string
	HouseNumber string
	PostalCode  string
}

var postalCodePattern = regexp.MustCompile(`^\d{5}$`)

// Normalize trims the user supplied fields.
func (a Address) Normalize() Address {
	a.Name = strings.TrimSpace(a.Name)
	a.Street = strings.TrimSpace(a.Street)
	a.HouseNumber = strings.TrimSpace(a.HouseNumber)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	return a
}

func (a Address) Validate() error {
	switch {
	case a.Name == "":
		return fmt.Errorf("address name is required: %w", ErrInvalidOperation)
	case a.Street == "":
		return fmt.Errorf("address street is required: %w", ErrInvalidOperation)
	case a.HouseNumber == "":
		return fmt.Errorf("address house number is required: %w", ErrInvalidOperation)
	case !postalCodePattern.MatchString(a.PostalCode):
		return fmt.Errorf("postal code %q must be a 5 digit number: %w", a.PostalCode, ErrInvalidOperation)
	}
	return nil
}
