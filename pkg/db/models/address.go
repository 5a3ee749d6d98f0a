package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/types"
)

// Address is a saved address owned by one account.
type Address struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index:idx_addresses_user_id"`
	Type         enums.AddressType `gorm:"column:type;type:text;not null"`
	IsDefault    bool              `gorm:"column:is_default;not null;default:false"`
	FirstName    string            `gorm:"column:first_name;not null"`
	LastName     string            `gorm:"column:last_name;not null"`
	Company      *string           `gorm:"column:company"`
	AddressLine1 string            `gorm:"column:address_line1;not null"`
	AddressLine2 *string           `gorm:"column:address_line2"`
	City         string            `gorm:"column:city;not null"`
	State        string            `gorm:"column:state;not null"`
	PostalCode   string            `gorm:"column:postal_code;not null"`
	Country      string            `gorm:"column:country;not null"`
	Phone        *string           `gorm:"column:phone"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	return ensureID(&a.ID)
}

// Postal returns the address as an order snapshot.
func (a Address) Postal() types.PostalAddress {
	return types.PostalAddress{
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Company:      a.Company,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		Phone:        a.Phone,
	}
}

// SetPostal copies snapshot fields onto the record.
func (a *Address) SetPostal(p types.PostalAddress) {
	a.FirstName = p.FirstName
	a.LastName = p.LastName
	a.Company = p.Company
	a.AddressLine1 = p.AddressLine1
	a.AddressLine2 = p.AddressLine2
	a.City = p.City
	a.State = p.State
	a.PostalCode = p.PostalCode
	a.Country = p.Country
	a.Phone = p.Phone
}
