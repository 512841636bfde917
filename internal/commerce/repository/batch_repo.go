package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"gorm.io/gorm"
)

// BatchRepository 批次仓库
type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// FindByID 根据ID查找批次
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*entity.Batch, error) {
	var b entity.Batch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, translate(err, "batch")
	}
	return &b, nil
}

// FindByNumber 按公司和批次号查找
func (r *BatchRepository) FindByNumber(ctx context.Context, companyID, batchNumber string, lock LockMode) (*entity.Batch, error) {
	var b entity.Batch
	err := withLock(r.db.WithContext(ctx), lock).
		Where("company_id = ? AND batch_number = ?", companyID, batchNumber).
		First(&b).Error
	if err != nil {
		return nil, translate(err, "batch")
	}
	return &b, nil
}

// FindByNumbers 批量查找批次
func (r *BatchRepository) FindByNumbers(ctx context.Context, companyID string, numbers []string, lock LockMode) ([]entity.Batch, error) {
	var items []entity.Batch
	err := withLock(r.db.WithContext(ctx), lock).
		Where("company_id = ? AND batch_number IN ?", companyID, numbers).
		Order("batch_number").
		Find(&items).Error
	return items, translate(err, "batch")
}

// CountByNumber 统计公司内同号批次数量，可排除某个批次
func (r *BatchRepository) CountByNumber(ctx context.Context, companyID, batchNumber, excludeID string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Batch{}).
		Where("company_id = ? AND batch_number = ?", companyID, batchNumber)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	err := query.Count(&count).Error
	return count, translate(err, "batch")
}

// Create 创建批次，批次号重复时返回 ErrDuplicateBatchNumber
func (r *BatchRepository) Create(ctx context.Context, b *entity.Batch) error {
	err := r.db.WithContext(ctx).Create(b).Error
	if apperr.IsUniqueViolation(err) {
		return apperr.ErrDuplicateBatchNumber
	}
	return translate(err, "batch")
}

// MoveToWarehouse 批次迁移到目标仓库（不复制）
func (r *BatchRepository) MoveToWarehouse(ctx context.Context, ids []string, warehouseID string) error {
	err := r.db.WithContext(ctx).Model(&entity.Batch{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"warehouse_id": warehouseID,
			"updated_at":   time.Now(),
		}).Error
	return translate(err, "batch")
}

// SumActiveQuantity 汇总活动批次数量
func (r *BatchRepository) SumActiveQuantity(ctx context.Context, productID, warehouseID, companyID string) (decimal.Decimal, error) {
	var quantities []decimal.Decimal
	err := r.db.WithContext(ctx).Model(&entity.Batch{}).
		Where("product_id = ? AND warehouse_id = ? AND company_id = ? AND status = ?",
			productID, warehouseID, companyID, entity.BatchStatusActive).
		Pluck("quantity", &quantities).Error
	if err != nil {
		return decimal.Zero, translate(err, "batch")
	}
	return decimal.Sum(decimal.Zero, quantities...), nil
}

// CountByCompany 公司批次总数
func (r *BatchRepository) CountByCompany(ctx context.Context, companyID string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Batch{})
	if companyID != "" {
		query = query.Where("company_id = ?", companyID)
	}
	var count int64
	err := query.Count(&count).Error
	return count, translate(err, "batch")
}

// FindOrphans 所属公司已不存在的批次
func (r *BatchRepository) FindOrphans(ctx context.Context, companyID string) ([]entity.Batch, error) {
	query := r.db.WithContext(ctx).Model(&entity.Batch{}).
		Select("batches.*").
		Joins("LEFT JOIN companies ON companies.id = batches.company_id").
		Where("companies.id IS NULL")
	if companyID != "" {
		query = query.Where("batches.company_id = ?", companyID)
	}
	var items []entity.Batch
	err := query.Order("batches.id").Find(&items).Error
	return items, translate(err, "batch")
}

// DuplicateNumber 公司内重复的批次号
type DuplicateNumber struct {
	CompanyID   string
	BatchNumber string
	Count       int64
}

// FindDuplicateNumbers 查找公司内重复批次号
func (r *BatchRepository) FindDuplicateNumbers(ctx context.Context, companyID string) ([]DuplicateNumber, error) {
	query := r.db.WithContext(ctx).Model(&entity.Batch{}).
		Select("company_id, batch_number, COUNT(*) AS count").
		Group("company_id, batch_number").
		Having("COUNT(*) > 1")
	if companyID != "" {
		query = query.Where("company_id = ?", companyID)
	}
	var dups []DuplicateNumber
	err := query.Order("company_id, batch_number").Scan(&dups).Error
	return dups, translate(err, "batch")
}

// FindWarehouseMismatches 批次所属公司与其仓库所属公司不一致
func (r *BatchRepository) FindWarehouseMismatches(ctx context.Context, companyID string) ([]entity.Batch, error) {
	query := r.db.WithContext(ctx).Model(&entity.Batch{}).
		Select("batches.*").
		Joins("JOIN warehouses ON warehouses.id = batches.warehouse_id").
		Where("warehouses.company_id <> batches.company_id")
	if companyID != "" {
		query = query.Where("batches.company_id = ? OR warehouses.company_id = ?", companyID, companyID)
	}
	var items []entity.Batch
	err := query.Order("batches.id").Find(&items).Error
	return items, translate(err, "batch")
}
