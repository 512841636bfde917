package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"go.uber.org/zap"
)

// 对账容差，小于该值视为舍入噪声
var reconcileTolerance = decimal.New(1, -2)

// 完整性问题代码
const (
	IssueOrphanedBatch        = "orphaned_batch"
	IssueOrphanedPayment      = "orphaned_payment"
	IssueCrossTenantInventory = "cross_tenant_inventory"
	IssueCrossTenantBatch     = "cross_tenant_batch"
	IssuePaymentLinkMismatch  = "payment_link_mismatch"
	IssueDuplicateBatchNumber = "duplicate_batch_number"
	IssueLargeBatchVolume     = "large_batch_volume"
	IssueLargePaymentVolume   = "large_payment_volume"
)

// IntegrityIssue 单条问题
type IntegrityIssue struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
}

// IntegrityReport 完整性检查报告
type IntegrityReport struct {
	CompanyID     string           `json:"company_id"`
	IsValid       bool             `json:"is_valid"`
	Errors        []IntegrityIssue `json:"errors"`
	Warnings      []IntegrityIssue `json:"warnings"`
	CheckedAt     time.Time        `json:"checked_at"`
	ArchiveObject string           `json:"archive_object,omitempty"`
}

func (r *IntegrityReport) addError(code, entityType, entityID, format string, args ...any) {
	r.Errors = append(r.Errors, IntegrityIssue{Code: code, EntityType: entityType, EntityID: entityID, Message: fmt.Sprintf(format, args...)})
}

func (r *IntegrityReport) addWarning(code, format string, args ...any) {
	r.Warnings = append(r.Warnings, IntegrityIssue{Code: code, Message: fmt.Sprintf(format, args...)})
}

// ConsistencyResult 批次与库存对账结果
type ConsistencyResult struct {
	IsConsistent      bool                `json:"is_consistent"`
	InventoryQuantity decimal.Decimal     `json:"inventory_quantity"`
	BatchQuantity     decimal.Decimal     `json:"batch_quantity"`
	Discrepancy       decimal.NullDecimal `json:"discrepancy"`
}

// IntegrityService detects isolation violations and referential anomalies. It only reads.
type IntegrityService struct {
	repos                *repository.Repositories
	archive              ReportArchive
	logger               *zap.Logger
	batchWarnThreshold   int64
	paymentWarnThreshold int64
	now                  func() time.Time
}

// NewIntegrityService 创建完整性检查服务，archive 可为 nil
func NewIntegrityService(repos *repository.Repositories, archive ReportArchive, logger *zap.Logger, batchWarn, paymentWarn int64) *IntegrityService {
	if batchWarn <= 0 {
		batchWarn = 10000
	}
	if paymentWarn <= 0 {
		paymentWarn = 10000
	}
	return &IntegrityService{
		repos:                repos,
		archive:              archive,
		logger:               logger,
		batchWarnThreshold:   batchWarn,
		paymentWarnThreshold: paymentWarn,
		now:                  time.Now,
	}
}

// withRepos 绑定到事务仓库，写路径在同一事务内复核
func (s *IntegrityService) withRepos(repos *repository.Repositories) *IntegrityService {
	bound := *s
	bound.repos = repos
	return &bound
}

// ValidateBatchOwnership checks the batch and its warehouse both belong to companyID.
func (s *IntegrityService) ValidateBatchOwnership(ctx context.Context, batchID, companyID string) error {
	batch, err := s.repos.Batch.FindByID(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.CompanyID != companyID {
		return apperr.AccessDenied("batch %s belongs to company %s, not %s", batchID, batch.CompanyID, companyID)
	}
	warehouse, err := s.repos.Warehouse.FindByID(ctx, batch.WarehouseID)
	if err != nil {
		return err
	}
	if warehouse.CompanyID != companyID {
		return apperr.AccessDenied("batch %s is stored in warehouse %s of company %s", batchID, warehouse.ID, warehouse.CompanyID)
	}
	return nil
}

// ValidatePaymentOwnership checks the payment belongs to companyID, that a referenced order has
// the payment's company as buyer or supplier, and that a referenced invoice shares its company.
func (s *IntegrityService) ValidatePaymentOwnership(ctx context.Context, paymentID, companyID string) error {
	payment, err := s.repos.Payment.FindByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.CompanyID != companyID {
		return apperr.AccessDenied("payment %s belongs to company %s, not %s", paymentID, payment.CompanyID, companyID)
	}
	if payment.OrderID != nil {
		order, err := s.repos.Order.FindByID(ctx, *payment.OrderID, repository.LockNone)
		if err != nil {
			return err
		}
		if order.CompanyID != payment.CompanyID && order.SupplierID != payment.CompanyID {
			return apperr.AccessDenied("payment %s references order %s of company %s", paymentID, order.ID, order.CompanyID)
		}
	}
	if payment.InvoiceID != nil {
		invoice, err := s.repos.Invoice.FindByID(ctx, *payment.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.CompanyID != payment.CompanyID {
			return apperr.AccessDenied("payment %s references invoice %s of company %s", paymentID, invoice.ID, invoice.CompanyID)
		}
	}
	return nil
}

// ValidateInventoryRelationships checks the row's company exists and that its warehouse and
// product both belong to that company.
func (s *IntegrityService) ValidateInventoryRelationships(ctx context.Context, inventoryID string) error {
	inv, err := s.repos.Inventory.FindByID(ctx, inventoryID, repository.LockNone)
	if err != nil {
		return err
	}
	company, err := s.repos.Company.FindByID(ctx, inv.CompanyID)
	if err != nil {
		return err
	}
	warehouse, err := s.repos.Warehouse.FindByID(ctx, inv.WarehouseID)
	if err != nil {
		return err
	}
	if warehouse.CompanyID != inv.CompanyID {
		return apperr.AccessDenied("inventory %s claims company %s but warehouse %s belongs to %s",
			inv.ID, inv.CompanyID, warehouse.ID, warehouse.CompanyID)
	}
	product, err := s.repos.Product.FindByID(ctx, inv.ProductID)
	if err != nil {
		return err
	}
	if ProductOwner(product, company.Type) != inv.CompanyID {
		return apperr.AccessDenied("inventory %s references product %s not owned by company %s", inv.ID, product.ID, inv.CompanyID)
	}
	return nil
}

// ValidateUniqueBatchNumber fails when another batch of the company already uses batchNumber.
func (s *IntegrityService) ValidateUniqueBatchNumber(ctx context.Context, companyID, batchNumber, excludeBatchID string) error {
	count, err := s.repos.Batch.CountByNumber(ctx, companyID, batchNumber, excludeBatchID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s already used by company %s", apperr.ErrDuplicateBatchNumber, batchNumber, companyID)
	}
	return nil
}

// ValidateBatchInventoryConsistency compares the sum of active batches with the inventory row.
// Differences below 0.01 are rounding noise. Nothing is corrected.
func (s *IntegrityService) ValidateBatchInventoryConsistency(ctx context.Context, productID, warehouseID, companyID string) (*ConsistencyResult, error) {
	inv, err := s.repos.Inventory.FindByKey(ctx, repository.InventoryKey{
		ProductID:   productID,
		WarehouseID: warehouseID,
		CompanyID:   companyID,
	}, repository.LockNone)
	if err != nil {
		return nil, err
	}
	batchTotal, err := s.repos.Batch.SumActiveQuantity(ctx, productID, warehouseID, companyID)
	if err != nil {
		return nil, err
	}

	result := &ConsistencyResult{
		IsConsistent:      true,
		InventoryQuantity: inv.Quantity,
		BatchQuantity:     batchTotal,
	}
	diff := inv.Quantity.Sub(batchTotal)
	if diff.Abs().GreaterThanOrEqual(reconcileTolerance) {
		result.IsConsistent = false
		result.Discrepancy = decimal.NewNullDecimal(diff)
	}
	return result, nil
}

// RunComprehensiveIntegrityCheck scans for orphans, cross tenant rows and duplicate batch
// numbers. An empty companyID scans every company.
func (s *IntegrityService) RunComprehensiveIntegrityCheck(ctx context.Context, companyID string) (*IntegrityReport, error) {
	report := &IntegrityReport{
		CompanyID: companyID,
		Errors:    []IntegrityIssue{},
		Warnings:  []IntegrityIssue{},
		CheckedAt: s.now(),
	}

	if err := s.checkOrphans(ctx, report, companyID); err != nil {
		return nil, err
	}

	leaks, err := s.repos.Inventory.FindWarehouseMismatches(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for _, inv := range leaks {
		report.addError(IssueCrossTenantInventory, "inventory", inv.ID,
			"inventory %s claims company %s but its warehouse %s belongs to another company", inv.ID, inv.CompanyID, inv.WarehouseID)
	}

	batchLeaks, err := s.repos.Batch.FindWarehouseMismatches(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for _, b := range batchLeaks {
		report.addError(IssueCrossTenantBatch, "batch", b.ID,
			"batch %s of company %s is stored in warehouse %s of another company", b.BatchNumber, b.CompanyID, b.WarehouseID)
	}

	paymentLinks, err := s.repos.Payment.FindLinkMismatches(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for _, p := range paymentLinks {
		report.addError(IssuePaymentLinkMismatch, "payment", p.ID,
			"payment %s of company %s references an order or invoice of another company", p.ID, p.CompanyID)
	}

	dups, err := s.repos.Batch.FindDuplicateNumbers(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for _, d := range dups {
		report.addError(IssueDuplicateBatchNumber, "company", d.CompanyID,
			"batch number %s is used %d times in company %s", d.BatchNumber, d.Count, d.CompanyID)
	}

	batchCount, err := s.repos.Batch.CountByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if batchCount > s.batchWarnThreshold {
		report.addWarning(IssueLargeBatchVolume, "%d batches exceed %d, consider archiving retired batches", batchCount, s.batchWarnThreshold)
	}
	paymentCount, err := s.repos.Payment.CountByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if paymentCount > s.paymentWarnThreshold {
		report.addWarning(IssueLargePaymentVolume, "%d payments exceed %d, consider archiving reconciled payments", paymentCount, s.paymentWarnThreshold)
	}

	report.IsValid = len(report.Errors) == 0
	s.store(ctx, report)
	return report, nil
}

func (s *IntegrityService) checkOrphans(ctx context.Context, report *IntegrityReport, companyID string) error {
	orphanBatches, err := s.repos.Batch.FindOrphans(ctx, companyID)
	if err != nil {
		return err
	}
	for _, b := range orphanBatches {
		report.addError(IssueOrphanedBatch, "batch", b.ID, "batch %s references missing company %s", b.BatchNumber, b.CompanyID)
	}

	orphanPayments, err := s.repos.Payment.FindOrphans(ctx, companyID)
	if err != nil {
		return err
	}
	for _, p := range orphanPayments {
		report.addError(IssueOrphanedPayment, "payment", p.ID, "payment %s references missing company %s", p.ID, p.CompanyID)
	}
	return nil
}

// RunOrphanCheck reports batches and payments whose company no longer exists. Such rows
// belong to no listed company, so per-company reports cannot see them.
func (s *IntegrityService) RunOrphanCheck(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{
		Errors:    []IntegrityIssue{},
		Warnings:  []IntegrityIssue{},
		CheckedAt: s.now(),
	}
	if err := s.checkOrphans(ctx, report, ""); err != nil {
		return nil, err
	}
	report.IsValid = len(report.Errors) == 0
	s.store(ctx, report)
	return report, nil
}

// RunForAllCompanies 对每个公司分别执行检查，最后追加一份不限公司的孤儿数据报告
func (s *IntegrityService) RunForAllCompanies(ctx context.Context) ([]*IntegrityReport, error) {
	ids, err := s.repos.Company.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]*IntegrityReport, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := s.RunComprehensiveIntegrityCheck(ctx, id)
		if err != nil {
			return reports, fmt.Errorf("company %s: %w", id, err)
		}
		reports = append(reports, report)
	}

	orphans, err := s.RunOrphanCheck(ctx)
	if err != nil {
		return reports, fmt.Errorf("orphan check: %w", err)
	}
	return append(reports, orphans), nil
}

func (s *IntegrityService) store(ctx context.Context, report *IntegrityReport) {
	if s.archive == nil {
		return
	}
	name, err := s.archive.Store(ctx, report)
	if err != nil {
		s.logger.Warn("integrity report archive failed", zap.String("company_id", report.CompanyID), zap.Error(err))
		return
	}
	report.ArchiveObject = name
}
