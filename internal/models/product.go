// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Shop struct {
	BaseModel
	Name            string    `json:"name" gorm:"size:100;not null"`
	URL             string    `json:"url,omitempty" gorm:"size:512"`
	UserID          uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`
	AcceptingOrders bool      `json:"accepting_orders" gorm:"not null;default:true;index"`

	// Relationships
	User       *User            `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Categories []Category       `json:"categories,omitempty" gorm:"many2many:shop_categories"`
	Listings   []ProductListing `json:"listings,omitempty" gorm:"foreignKey:ShopID"`
}

type Category struct {
	BaseModel
	Name string `json:"name" gorm:"size:100;not null;uniqueIndex"`

	// Relationships
	Shops    []Shop    `json:"shops,omitempty" gorm:"many2many:shop_categories"`
	Products []Product `json:"products,omitempty" gorm:"foreignKey:CategoryID"`
}

type Product struct {
	BaseModel
	Name       string    `json:"name" gorm:"size:200;not null;uniqueIndex:idx_products_name_category"`
	CategoryID uuid.UUID `json:"category_id" gorm:"type:uuid;not null;uniqueIndex:idx_products_name_category"`

	// Relationships
	Category *Category       `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Listings []ProductListing `json:"listings,omitempty" gorm:"foreignKey:ProductID"`
}

// ProductListing is one shop's offer of a catalog product.
type ProductListing struct {
	BaseModel
	ShopID     uuid.UUID       `json:"shop_id" gorm:"type:uuid;not null;uniqueIndex:idx_listings_shop_external"`
	ProductID  uuid.UUID       `json:"product_id" gorm:"type:uuid;not null;index"`
	ExternalID int64           `json:"external_id" gorm:"not null;uniqueIndex:idx_listings_shop_external"`
	Model      string          `json:"model" gorm:"size:200"`
	Quantity   int             `json:"quantity" gorm:"not null;default:0"`
	Price      decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	PriceRRC   decimal.Decimal `json:"price_rrc" gorm:"type:decimal(12,2);not null"`

	// Relationships
	Shop       *Shop              `json:"shop,omitempty" gorm:"foreignKey:ShopID"`
	Product    *Product           `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Parameters []ListingParameter `json:"parameters,omitempty" gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
}

type ListingParameter struct {
	BaseModel
	ListingID uuid.UUID `json:"listing_id" gorm:"type:uuid;not null;uniqueIndex:idx_listing_parameters_name"`
	Name      string    `json:"name" gorm:"size:100;not null;uniqueIndex:idx_listing_parameters_name"`
	Value     string    `json:"value" gorm:"size:200;not null"`
}
