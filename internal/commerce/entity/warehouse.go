package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// WarehouseType 仓库类型
const (
	WarehouseTypeMain         = "main"
	WarehouseTypeSatellite    = "satellite"
	WarehouseTypeThirdParty   = "third_party"
	WarehouseTypeDistribution = "distribution"
)

// WarehouseStatus 仓库状态
const (
	WarehouseStatusActive      = "active"
	WarehouseStatusInactive    = "inactive"
	WarehouseStatusMaintenance = "maintenance"
)

// Warehouse 仓库。CompanyID 创建后不可修改
type Warehouse struct {
	ID        string          `json:"id" gorm:"primaryKey;size:36"`
	CompanyID string          `json:"company_id" gorm:"size:36;not null;index"`
	Name      string          `json:"name" gorm:"size:200;not null"`
	Address   string          `json:"address" gorm:"size:500"`
	Capacity  decimal.Decimal `json:"capacity" gorm:"type:decimal(14,2);not null;default:0"`
	Type      string          `json:"type" gorm:"size:20;not null;default:main"`
	Status    string          `json:"status" gorm:"size:20;not null;default:active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Warehouse) TableName() string {
	return "warehouses"
}
