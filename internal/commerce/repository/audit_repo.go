package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"gorm.io/gorm"
)

// SecurityAuditLogRepository 安全审计日志仓库
type SecurityAuditLogRepository struct {
	db *gorm.DB
}

func NewSecurityAuditLogRepository(db *gorm.DB) *SecurityAuditLogRepository {
	return &SecurityAuditLogRepository{db: db}
}

// Create 写入审计日志
func (r *SecurityAuditLogRepository) Create(ctx context.Context, log *entity.SecurityAuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	return translate(r.db.WithContext(ctx).Create(log).Error, "security audit log")
}

// FindByCompany 查询公司的审计日志，event 为空时不过滤
func (r *SecurityAuditLogRepository) FindByCompany(ctx context.Context, companyID, event string, page, pageSize int) ([]entity.SecurityAuditLog, int64, error) {
	var items []entity.SecurityAuditLog
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.SecurityAuditLog{}).Where("company_id = ?", companyID)
	if event != "" {
		query = query.Where("event = ?", event)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "security audit log")
	}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, translate(err, "security audit log")
}
