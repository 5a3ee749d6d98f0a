package types

import "strings"

// PostalAddress is the snapshot of a delivery or billing address. It is
// stored as JSON on orders and as columns on saved addresses.
type PostalAddress struct {
	FirstName    string  `json:"firstName" validate:"required,max=50"`
	LastName     string  `json:"lastName" validate:"required,max=50"`
	Company      *string `json:"company,omitempty"`
	AddressLine1 string  `json:"addressLine1" validate:"required"`
	AddressLine2 *string `json:"addressLine2,omitempty"`
	City         string  `json:"city" validate:"required"`
	State        string  `json:"state" validate:"required"`
	PostalCode   string  `json:"postalCode" validate:"required"`
	Country      string  `json:"country" validate:"required"`
	Phone        *string `json:"phone,omitempty"`
}

// Normalize trims whitespace and upper-cases the country code.
func (a PostalAddress) Normalize() PostalAddress {
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.LastName = strings.TrimSpace(a.LastName)
	a.AddressLine1 = strings.TrimSpace(a.AddressLine1)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	a.Company = trimOptional(a.Company)
	a.AddressLine2 = trimOptional(a.AddressLine2)
	a.Phone = trimOptional(a.Phone)
	return a
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
