package entity

import "time"

// CompanyType 公司类型
const (
	CompanyTypeDealer   = "dealer"
	CompanyTypeSupplier = "supplier"
)

// CompanyStatus 公司状态
const (
	CompanyStatusPendingVerification = "pending_verification"
	CompanyStatusActive              = "active"
	CompanyStatusSuspended           = "suspended"
	CompanyStatusRejected            = "rejected"
)

// Company 租户（经销商或供应商）
type Company struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:200;not null"`
	Type      string    `json:"type" gorm:"size:20;not null;index"`
	Status    string    `json:"status" gorm:"size:30;not null;default:pending_verification"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Company) TableName() string {
	return "companies"
}

func (c *Company) IsActive() bool {
	return c.Status == CompanyStatusActive
}

// UserRole 用户角色
const (
	UserRoleAdmin   = "admin"
	UserRoleManager = "manager"
	UserRoleStaff   = "staff"
)

// User 公司用户
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CompanyID string    `json:"company_id" gorm:"size:36;not null;index"`
	Email     string    `json:"email" gorm:"size:200;not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:100"`
	Role      string    `json:"role" gorm:"size:20;not null;default:staff"`
	Status    string    `json:"status" gorm:"size:20;not null;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Company *Company `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
}

func (User) TableName() string {
	return "users"
}
