// internal/models/product.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is the storefront item created once a deal is funded.
type Product struct {
	BaseModel
	DealID      uuid.UUID      `json:"deal_id" gorm:"type:uuid;not null;uniqueIndex"`
	OwnerID     uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title       string         `json:"title" gorm:"size:255;not null"`
	Description string         `json:"description" gorm:"type:text"`
	Price       float64        `json:"price" gorm:"type:decimal(15,2);not null"`
	Images      pq.StringArray `json:"images" gorm:"type:text[]"`
	Status      ProductStatus  `json:"status" gorm:"type:varchar(20);default:'draft';index"`
}

// OrderItem is a settled storefront sale line. The checkout flow owns these
// rows; the deal engine only reads them.
type OrderItem struct {
	BaseModel
	OrderID   uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index:idx_order_items_product_settled"`
	UnitPrice float64   `json:"unit_price" gorm:"type:decimal(15,2);not null"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	SettledAt time.Time `json:"settled_at" gorm:"not null;index:idx_order_items_product_settled"`
}
