package repository

import (
	"context"
	"errors"

	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 错误定义
var (
	ErrNotFound = apperr.ErrNotFound
)

// LockMode 行锁模式
type LockMode int

const (
	LockNone LockMode = iota
	// LockShare is a pessimistic read lock (FOR SHARE).
	LockShare
	// LockUpdate is an exclusive row lock (FOR UPDATE).
	LockUpdate
)

func withLock(q *gorm.DB, mode LockMode) *gorm.DB {
	switch mode {
	case LockShare:
		return q.Clauses(clause.Locking{Strength: "SHARE"})
	case LockUpdate:
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	default:
		return q
	}
}

func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource)
	}
	return apperr.FromStore(err)
}

// Repositories 仓库集合，可绑定到同一个事务
type Repositories struct {
	db *gorm.DB

	Company     *CompanyRepository
	Warehouse   *WarehouseRepository
	Product     *ProductRepository
	Inventory   *InventoryRepository
	Batch       *BatchRepository
	Order       *OrderRepository
	Invoice     *InvoiceRepository
	Payment     *PaymentRepository
	SecurityLog *SecurityAuditLogRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Company:     NewCompanyRepository(db),
		Warehouse:   NewWarehouseRepository(db),
		Product:     NewProductRepository(db),
		Inventory:   NewInventoryRepository(db),
		Batch:       NewBatchRepository(db),
		Order:       NewOrderRepository(db),
		Invoice:     NewInvoiceRepository(db),
		Payment:     NewPaymentRepository(db),
		SecurityLog: NewSecurityAuditLogRepository(db),
	}
}

// DB 返回底层db
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// RunInTransaction runs fn with every repository bound to one transaction.
// The transaction commits when fn returns nil and rolls back otherwise, including on panic.
func (r *Repositories) RunInTransaction(ctx context.Context, fn func(tx *Repositories) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
	return apperr.FromStore(err)
}
