package entity

import "time"

// ProductStatus 产品状态
const (
	ProductStatusActive       = "active"
	ProductStatusInactive     = "inactive"
	ProductStatusOutOfStock   = "out_of_stock"
	ProductStatusDiscontinued = "discontinued"
)

// Product 产品。供应商按 SupplierID 拥有，经销商按 DealerID 拥有
type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	SupplierID  string    `json:"supplier_id" gorm:"size:36;not null;index"`
	DealerID    *string   `json:"dealer_id,omitempty" gorm:"size:36;index"`
	Name        string    `json:"name" gorm:"size:200;not null"`
	SKU         string    `json:"sku" gorm:"size:64"`
	Unit        string    `json:"unit" gorm:"size:20;not null;default:pcs"`
	Description string    `json:"description" gorm:"type:text"`
	Status      string    `json:"status" gorm:"size:20;not null;default:active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
