package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Inventory 库存记录：每个租户、每个仓库、每个产品唯一一行
type Inventory struct {
	ID              string              `json:"id" gorm:"primaryKey;size:36"`
	ProductID       string              `json:"product_id" gorm:"size:36;not null;uniqueIndex:idx_inventory_product_warehouse_company,priority:1"`
	WarehouseID     string              `json:"warehouse_id" gorm:"size:36;not null;uniqueIndex:idx_inventory_product_warehouse_company,priority:2;index"`
	CompanyID       string              `json:"company_id" gorm:"size:36;not null;uniqueIndex:idx_inventory_product_warehouse_company,priority:3;index"`
	Quantity        decimal.Decimal     `json:"quantity" gorm:"type:decimal(14,2);not null;default:0"`
	Unit            string              `json:"unit" gorm:"size:20;not null;default:pcs"`
	MinThreshold    decimal.NullDecimal `json:"min_threshold" gorm:"type:decimal(14,2)"`
	MaxThreshold    decimal.NullDecimal `json:"max_threshold" gorm:"type:decimal(14,2)"`
	ReorderPoint    decimal.NullDecimal `json:"reorder_point" gorm:"type:decimal(14,2)"`
	ReorderQuantity decimal.NullDecimal `json:"reorder_quantity" gorm:"type:decimal(14,2)"`
	AutoReorder     bool                `json:"auto_reorder" gorm:"not null;default:false"`
	LastReorderDate *time.Time          `json:"last_reorder_date"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`

	Product   *Product   `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Warehouse *Warehouse `json:"warehouse,omitempty" gorm:"foreignKey:WarehouseID"`
}

func (Inventory) TableName() string {
	return "inventory"
}

// ReorderDue reports whether auto reorder is on and quantity has reached the reorder point.
func (i *Inventory) ReorderDue(quantity decimal.Decimal) bool {
	return i.AutoReorder && i.ReorderPoint.Valid && quantity.LessThanOrEqual(i.ReorderPoint.Decimal)
}

// TransactionType 库存流水类型
const (
	TxTypeAdjust        = "ADJUST"
	TxTypeTransferOut   = "TRANSFER_OUT"
	TxTypeTransferIn    = "TRANSFER_IN"
	TxTypeOrderOut      = "ORDER_OUT"
	TxTypeOrderCancelIn = "ORDER_CANCEL_IN"
)

// InventoryTransaction 库存流水（只追加）
type InventoryTransaction struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	InventoryID     string          `json:"inventory_id" gorm:"size:36;not null;index"`
	CompanyID       string          `json:"company_id" gorm:"size:36;not null;index"`
	ProductID       string          `json:"product_id" gorm:"size:36;not null"`
	WarehouseID     string          `json:"warehouse_id" gorm:"size:36;not null"`
	TransactionType string          `json:"transaction_type" gorm:"size:20;not null"`
	Quantity        decimal.Decimal `json:"quantity" gorm:"type:decimal(14,2);not null"` // 正=入，负=出
	QuantityBefore  decimal.Decimal `json:"quantity_before" gorm:"type:decimal(14,2);not null"`
	QuantityAfter   decimal.Decimal `json:"quantity_after" gorm:"type:decimal(14,2);not null"`
	Reason          string          `json:"reason" gorm:"type:text"`
	ReferenceType   string          `json:"reference_type" gorm:"size:30"`
	ReferenceID     string          `json:"reference_id" gorm:"size:36"`
	CreatedBy       string          `json:"created_by" gorm:"size:36"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}

// BatchStatus 批次状态
const (
	BatchStatusActive   = "active"
	BatchStatusDepleted = "depleted"
	BatchStatusExpired  = "expired"
	BatchStatusRetired  = "retired"
)

// Batch 批次。批次号在公司内唯一；批次只追加，不合并
type Batch struct {
	ID                string            `json:"id" gorm:"primaryKey;size:36"`
	BatchNumber       string            `json:"batch_number" gorm:"size:64;not null;uniqueIndex:idx_batch_number_company,priority:1"`
	ProductID         string            `json:"product_id" gorm:"size:36;not null;index"`
	WarehouseID       string            `json:"warehouse_id" gorm:"size:36;not null;index"`
	CompanyID         string            `json:"company_id" gorm:"size:36;not null;uniqueIndex:idx_batch_number_company,priority:2;index"`
	Quantity          decimal.Decimal   `json:"quantity" gorm:"type:decimal(14,2);not null;default:0"`
	Unit              string            `json:"unit" gorm:"size:20;not null;default:pcs"`
	ManufacturingDate *time.Time        `json:"manufacturing_date"`
	ExpiryDate        *time.Time        `json:"expiry_date" gorm:"index"`
	Status            string            `json:"status" gorm:"size:20;not null;default:active"`
	Metadata          datatypes.JSONMap `json:"metadata"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (Batch) TableName() string {
	return "batches"
}

// ExpiredAt reports whether the batch is past its expiry date at t.
func (b *Batch) ExpiredAt(t time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(t)
}
