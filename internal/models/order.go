// internal/models/order.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Contact struct {
	BaseModel
	UserID    uuid.UUID `json:"-" gorm:"type:uuid;not null;uniqueIndex"`
	City      string    `json:"city" gorm:"size:50;not null"`
	Street    string    `json:"street" gorm:"size:100;not null"`
	House     string    `json:"house" gorm:"size:15"`
	Structure string    `json:"structure" gorm:"size:15"`
	Building  string    `json:"building" gorm:"size:15"`
	Apartment string    `json:"apartment" gorm:"size:15"`
	Phone     string    `json:"phone" gorm:"size:20;not null"`
}

type Order struct {
	BaseModel
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	State     OrderState `json:"state" gorm:"type:varchar(15);not null;index"`
	ContactID *uuid.UUID `json:"contact_id" gorm:"type:uuid;index"`

	// TotalSum is derived from the lines and never persisted.
	TotalSum decimal.Decimal `json:"total_sum" gorm:"-"`

	// Relationships
	User    *User       `json:"-" gorm:"foreignKey:UserID"`
	Contact *Contact    `json:"contact,omitempty" gorm:"foreignKey:ContactID"`
	Lines   []OrderLine `json:"ordered_items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Token   *ConfirmationToken `json:"-" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// ComputeTotal sums quantity x listing price over the loaded lines.
// Lines without a loaded listing contribute nothing.
func (o *Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Lines {
		if line.Listing == nil {
			continue
		}
		total = total.Add(line.Listing.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	o.TotalSum = total
	return total
}

type OrderLine struct {
	BaseModel
	OrderID   uuid.UUID `json:"order_id" gorm:"type:uuid;not null;uniqueIndex:idx_order_lines_order_listing"`
	ListingID uuid.UUID `json:"listing_id" gorm:"type:uuid;not null;uniqueIndex:idx_order_lines_order_listing"`
	Quantity  int       `json:"quantity" gorm:"not null"`

	// Relationships
	Listing *ProductListing `json:"product_info,omitempty" gorm:"foreignKey:ListingID"`
}

// ConfirmationToken proves control of the buyer's mailbox; consumed on use.
type ConfirmationToken struct {
	BaseModel
	OrderID uuid.UUID `json:"order_id" gorm:"type:uuid;not null;uniqueIndex"`
	Key     string    `json:"-" gorm:"column:token_key;size:64;not null;uniqueIndex"`
}
