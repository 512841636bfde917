package repository

import (
	"context"

	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"gorm.io/gorm"
)

// InvoiceRepository 发票仓库
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// FindByID 根据ID查找发票
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*entity.Invoice, error) {
	var inv entity.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, translate(err, "invoice")
	}
	return &inv, nil
}

// PaymentRepository 付款仓库
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByID 根据ID查找付款
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*entity.Payment, error) {
	var p entity.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err, "payment")
	}
	return &p, nil
}

// CountByCompany 公司付款总数
func (r *PaymentRepository) CountByCompany(ctx context.Context, companyID string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Payment{})
	if companyID != "" {
		query = query.Where("company_id = ?", companyID)
	}
	var count int64
	err := query.Count(&count).Error
	return count, translate(err, "payment")
}

// FindOrphans 所属公司已不存在的付款
func (r *PaymentRepository) FindOrphans(ctx context.Context, companyID string) ([]entity.Payment, error) {
	query := r.db.WithContext(ctx).Model(&entity.Payment{}).
		Select("payments.*").
		Joins("LEFT JOIN companies ON companies.id = payments.company_id").
		Where("companies.id IS NULL")
	if companyID != "" {
		query = query.Where("payments.company_id = ?", companyID)
	}
	var items []entity.Payment
	err := query.Order("payments.id").Find(&items).Error
	return items, translate(err, "payment")
}

// FindLinkMismatches 关联的订单或发票属于其他公司的付款。订单的买方和供货方都可以登记付款
func (r *PaymentRepository) FindLinkMismatches(ctx context.Context, companyID string) ([]entity.Payment, error) {
	query := r.db.WithContext(ctx).Model(&entity.Payment{}).
		Select("payments.*").
		Joins("LEFT JOIN orders ON orders.id = payments.order_id").
		Joins("LEFT JOIN invoices ON invoices.id = payments.invoice_id").
		Where("(orders.id IS NOT NULL AND orders.company_id <> payments.company_id AND orders.supplier_id <> payments.company_id) OR " +
			"(invoices.id IS NOT NULL AND invoices.company_id <> payments.company_id)")
	if companyID != "" {
		query = query.Where("payments.company_id = ?", companyID)
	}
	var items []entity.Payment
	err := query.Order("payments.id").Find(&items).Error
	return items, translate(err, "payment")
}
