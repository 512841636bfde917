package entity

import (
	"time"

	"gorm.io/datatypes"
)

// SecurityEvent 安全审计事件
const (
	SecurityEventCrossTenantDenied   = "cross_tenant_access_denied"
	SecurityEventCompanyAccessDenied = "company_access_denied"
	SecurityEventRateLimited         = "rate_limit_exceeded"
	SecurityEventInventoryAdjustment = "inventory_adjustment"
	SecurityEventStockTransfer       = "stock_transfer"
	SecurityEventIntegrityCheck      = "integrity_check"
)

// SecurityAuditLog 安全审计日志
type SecurityAuditLog struct {
	ID        string            `json:"id" gorm:"primaryKey;size:36"`
	Event     string            `json:"event" gorm:"size:50;not null;index"`
	UserID    string            `json:"user_id" gorm:"size:36;index"`
	CompanyID string            `json:"company_id" gorm:"size:36;index"`
	Role      string            `json:"role" gorm:"size:20"`
	ClientIP  string            `json:"client_ip" gorm:"size:64"`
	Method    string            `json:"method" gorm:"size:10"`
	URL       string            `json:"url" gorm:"size:1024"`
	RequestID string            `json:"request_id" gorm:"size:64"`
	Details   datatypes.JSONMap `json:"details"`
	CreatedAt time.Time         `json:"created_at"`
}

func (SecurityAuditLog) TableName() string {
	return "security_audit_logs"
}

// Models 所有需要迁移的表
func Models() []interface{} {
	return []interface{}{
		&Company{},
		&User{},
		&Warehouse{},
		&Product{},
		&Inventory{},
		&InventoryTransaction{},
		&Batch{},
		&Order{},
		&OrderItem{},
		&Invoice{},
		&Payment{},
		&SecurityAuditLog{},
	}
}
