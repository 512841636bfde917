package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
	OrderStatusFulfilled = "fulfilled"
)

// Order 订单。CompanyID 为下单公司，SupplierID 为供货公司
type Order struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	CompanyID   string          `json:"company_id" gorm:"size:36;not null;index"`
	SupplierID  string          `json:"supplier_id" gorm:"size:36;not null;index"`
	WarehouseID string          `json:"warehouse_id" gorm:"size:36;not null"`
	OrderNumber string          `json:"order_number" gorm:"size:50"`
	Status      string          `json:"status" gorm:"size:20;not null;default:pending"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(14,2);not null;default:0"`
	Notes       string          `json:"notes" gorm:"type:text"`
	CreatedBy   string          `json:"created_by" gorm:"size:36"`
	CancelledAt *time.Time      `json:"cancelled_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单行
type OrderItem struct {
	ID        string          `json:"id" gorm:"primaryKey;size:36"`
	OrderID   string          `json:"order_id" gorm:"size:36;not null;index"`
	ProductID string          `json:"product_id" gorm:"size:36;not null"`
	Quantity  decimal.Decimal `json:"quantity" gorm:"type:decimal(14,2);not null"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(14,2);not null;default:0"`
	CreatedAt time.Time       `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// InvoiceStatus 发票状态
const (
	InvoiceStatusDraft = "draft"
	InvoiceStatusSent  = "sent"
	InvoiceStatusPaid  = "paid"
	InvoiceStatusVoid  = "void"
)

// Invoice 发票
type Invoice struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	CompanyID     string          `json:"company_id" gorm:"size:36;not null;index"`
	OrderID       *string         `json:"order_id,omitempty" gorm:"size:36;index"`
	InvoiceNumber string          `json:"invoice_number" gorm:"size:50"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null;default:0"`
	Status        string          `json:"status" gorm:"size:20;not null;default:draft"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// ReconciliationStatus 对账状态
const (
	ReconciliationPending    = "pending"
	ReconciliationReconciled = "reconciled"
	ReconciliationDisputed   = "disputed"
)

// Payment 付款。关联订单/发票时公司必须一致
type Payment struct {
	ID                   string          `json:"id" gorm:"primaryKey;size:36"`
	CompanyID            string          `json:"company_id" gorm:"size:36;not null;index"`
	OrderID              *string         `json:"order_id,omitempty" gorm:"size:36;index"`
	InvoiceID            *string         `json:"invoice_id,omitempty" gorm:"size:36;index"`
	Amount               decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null;default:0"`
	Method               string          `json:"method" gorm:"size:30"`
	ReconciliationStatus string          `json:"reconciliation_status" gorm:"size:20;not null;default:pending"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
