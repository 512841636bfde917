package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// 数量统一保留两位小数
const quantityPlaces = 2

func roundQty(d decimal.Decimal) decimal.Decimal {
	return d.Round(quantityPlaces)
}

// InventoryService is the only writer of inventory quantities. Every mutation runs in one
// transaction with the affected rows locked FOR UPDATE and appends ledger rows. The locked
// rows are re-checked for cross-tenant references before anything is written.
type InventoryService struct {
	repos    *repository.Repositories
	checks   *IntegrityService
	notifier ReorderNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewInventoryService 创建库存服务
func NewInventoryService(repos *repository.Repositories, notifier ReorderNotifier, logger *zap.Logger) *InventoryService {
	if notifier == nil {
		notifier = NopReorderNotifier{}
	}
	return &InventoryService{
		repos:    repos,
		checks:   NewIntegrityService(repos, nil, logger, 0, 0),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// ValidateStockAvailability checks that the company's (product, warehouse) row holds at least
// quantity. When tx is non-nil the row is read FOR SHARE so it cannot change before the caller acts.
func (s *InventoryService) ValidateStockAvailability(ctx context.Context, companyID, productID, warehouseID string, quantity decimal.Decimal, tx *repository.Repositories) (*entity.Inventory, error) {
	requested := roundQty(quantity)
	if !requested.IsPositive() {
		return nil, apperr.Validation("quantity must be positive")
	}

	repos, lock := s.repos, repository.LockNone
	if tx != nil {
		repos, lock = tx, repository.LockShare
	}
	inv, err := repos.Inventory.FindByKey(ctx, repository.InventoryKey{
		ProductID:   productID,
		WarehouseID: warehouseID,
		CompanyID:   companyID,
	}, lock)
	if err != nil {
		return nil, err
	}
	if inv.Quantity.LessThan(requested) {
		return nil, apperr.InsufficientStock(inv.Quantity, requested)
	}
	return inv, nil
}

// ValidateBatchAvailability checks an active, unexpired batch of the company holds quantity.
// Expired batches are rejected even when their recorded quantity would suffice.
func (s *InventoryService) ValidateBatchAvailability(ctx context.Context, companyID, batchNumber string, quantity decimal.Decimal, tx *repository.Repositories) (*entity.Batch, error) {
	requested := roundQty(quantity)
	if !requested.IsPositive() {
		return nil, apperr.Validation("quantity must be positive")
	}

	repos, lock := s.repos, repository.LockNone
	if tx != nil {
		repos, lock = tx, repository.LockShare
	}
	batch, err := repos.Batch.FindByNumber(ctx, companyID, batchNumber, lock)
	if err != nil {
		return nil, err
	}

	if batch.Status == entity.BatchStatusExpired || batch.ExpiredAt(s.now()) {
		expiry := time.Time{}
		if batch.ExpiryDate != nil {
			expiry = *batch.ExpiryDate
		}
		return nil, &apperr.ExpiredError{BatchNumber: batch.BatchNumber, ExpiryDate: expiry}
	}
	available := batch.Quantity
	if batch.Status != entity.BatchStatusActive {
		available = decimal.Zero
	}
	if available.LessThan(requested) {
		return nil, apperr.InsufficientStock(available, requested)
	}
	return batch, nil
}

// BatchInfo 入库时随调整一起登记的批次
type BatchInfo struct {
	BatchNumber       string                 `json:"batch_number"`
	ManufacturingDate *time.Time             `json:"manufacturing_date"`
	ExpiryDate        *time.Time             `json:"expiry_date"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// AdjustRequest 库存调整请求
type AdjustRequest struct {
	InventoryID string
	CompanyID   string
	Adjustment  decimal.Decimal
	Reason      string
	Batch       *BatchInfo
	UserID      string
}

// AdjustInventoryQuantity applies a signed adjustment to a row of the company. The new
// quantity, the optional batch and the reorder stamp commit together or not at all.
func (s *InventoryService) AdjustInventoryQuantity(ctx context.Context, req AdjustRequest) (*entity.Inventory, error) {
	adjustment := roundQty(req.Adjustment)
	if adjustment.IsZero() {
		return nil, apperr.Validation("adjustment must not be zero")
	}
	if req.Batch != nil && req.Batch.ManufacturingDate != nil && req.Batch.ExpiryDate != nil &&
		req.Batch.ExpiryDate.Before(*req.Batch.ManufacturingDate) {
		return nil, apperr.Validation("batch expiry date is before its manufacturing date")
	}

	var (
		updated *entity.Inventory
		event   *ReorderEvent
	)
	err := s.repos.RunInTransaction(ctx, func(tx *repository.Repositories) error {
		inv, err := tx.Inventory.FindByIDAndCompany(ctx, req.InventoryID, req.CompanyID, repository.LockUpdate)
		if err != nil {
			return err
		}
		checks := s.checks.withRepos(tx)
		if err := checks.ValidateInventoryRelationships(ctx, inv.ID); err != nil {
			return err
		}
		withBatch := adjustment.IsPositive() && req.Batch != nil && req.Batch.BatchNumber != ""
		if withBatch {
			if err := checks.ValidateUniqueBatchNumber(ctx, inv.CompanyID, req.Batch.BatchNumber, ""); err != nil {
				return err
			}
		}

		event, err = s.applyDelta(ctx, tx, inv, adjustment, movement{
			txType: entity.TxTypeAdjust,
			reason: req.Reason,
			userID: req.UserID,
		})
		if err != nil {
			return err
		}

		if withBatch {
			if err := tx.Batch.Create(ctx, newAdjustmentBatch(inv, adjustment, req)); err != nil {
				return err
			}
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, event)
	return updated, nil
}

func newAdjustmentBatch(inv *entity.Inventory, quantity decimal.Decimal, req AdjustRequest) *entity.Batch {
	meta := datatypes.JSONMap{}
	for k, v := range req.Batch.Metadata {
		meta[k] = v
	}
	meta["reason"] = req.Reason
	meta["inventory_id"] = inv.ID
	meta["adjustment"] = quantity.StringFixed(quantityPlaces)
	if req.UserID != "" {
		meta["created_by"] = req.UserID
	}

	return &entity.Batch{
		ID:                uuid.New().String(),
		BatchNumber:       req.Batch.BatchNumber,
		ProductID:         inv.ProductID,
		WarehouseID:       inv.WarehouseID,
		CompanyID:         inv.CompanyID,
		Quantity:          quantity,
		Unit:              inv.Unit,
		ManufacturingDate: req.Batch.ManufacturingDate,
		ExpiryDate:        req.Batch.ExpiryDate,
		Status:            entity.BatchStatusActive,
		Metadata:          meta,
	}
}

// TransferRequest 调拨请求
type TransferRequest struct {
	CompanyID         string
	SourceWarehouseID string
	TargetWarehouseID string
	ProductID         string
	Quantity          decimal.Decimal
	BatchNumbers      []string
	Reason            string
	UserID            string
}

// TransferResult 调拨结果
type TransferResult struct {
	TransferID   string            `json:"transfer_id"`
	Source       *entity.Inventory `json:"source"`
	Target       *entity.Inventory `json:"target"`
	MovedBatches []string          `json:"moved_batches"`
}

// TransferStock moves quantity of a product between two warehouses of the same company.
// Listed batches are re-pointed to the target warehouse, never copied.
func (s *InventoryService) TransferStock(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	quantity := roundQty(req.Quantity)
	if !quantity.IsPositive() {
		return nil, apperr.Validation("transfer quantity must be positive")
	}
	if req.SourceWarehouseID == req.TargetWarehouseID {
		return nil, apperr.Validation("source and target warehouse must differ")
	}
	for _, whID := range []string{req.SourceWarehouseID, req.TargetWarehouseID} {
		w, err := s.repos.Warehouse.FindByID(ctx, whID)
		if err != nil {
			return nil, err
		}
		if w.CompanyID != req.CompanyID {
			return nil, apperr.AccessDenied("warehouse %s belongs to company %s", whID, w.CompanyID)
		}
	}

	result := &TransferResult{TransferID: uuid.New().String()}
	var event *ReorderEvent
	err := s.repos.RunInTransaction(ctx, func(tx *repository.Repositories) error {
		rows, err := lockTransferRows(ctx, tx, req)
		if err != nil {
			return err
		}
		source, ok := rows[req.SourceWarehouseID]
		if !ok {
			return apperr.NotFound("inventory")
		}
		checks := s.checks.withRepos(tx)
		for _, whID := range []string{req.SourceWarehouseID, req.TargetWarehouseID} {
			if inv, ok := rows[whID]; ok {
				if err := checks.ValidateInventoryRelationships(ctx, inv.ID); err != nil {
					return err
				}
			}
		}
		if source.Quantity.LessThan(quantity) {
			return apperr.InsufficientStock(source.Quantity, quantity)
		}
		target, ok := rows[req.TargetWarehouseID]
		if !ok {
			target = &entity.Inventory{
				ID:          uuid.New().String(),
				ProductID:   req.ProductID,
				WarehouseID: req.TargetWarehouseID,
				CompanyID:   req.CompanyID,
				Quantity:    decimal.Zero,
				Unit:        source.Unit,
			}
			if err := tx.Inventory.Create(ctx, target); err != nil {
				return err
			}
		}

		ref := movement{reason: req.Reason, refType: "transfer", refID: result.TransferID, userID: req.UserID}
		out := ref
		out.txType = entity.TxTypeTransferOut
		if event, err = s.applyDelta(ctx, tx, source, quantity.Neg(), out); err != nil {
			return err
		}
		in := ref
		in.txType = entity.TxTypeTransferIn
		if _, err = s.applyDelta(ctx, tx, target, quantity, in); err != nil {
			return err
		}

		moved, err := relocateBatches(ctx, tx, checks, req, quantity)
		if err != nil {
			return err
		}
		result.Source, result.Target, result.MovedBatches = source, target, moved
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, event)
	return result, nil
}

// lockTransferRows locks both rows in warehouse id order so opposite transfers queue instead of deadlocking.
func lockTransferRows(ctx context.Context, tx *repository.Repositories, req TransferRequest) (map[string]*entity.Inventory, error) {
	order := []string{req.SourceWarehouseID, req.TargetWarehouseID}
	sort.Strings(order)

	rows := make(map[string]*entity.Inventory, 2)
	for _, whID := range order {
		inv, err := tx.Inventory.FindByKey(ctx, repository.InventoryKey{
			ProductID:   req.ProductID,
			WarehouseID: whID,
			CompanyID:   req.CompanyID,
		}, repository.LockUpdate)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rows[whID] = inv
	}
	return rows, nil
}

func relocateBatches(ctx context.Context, tx *repository.Repositories, checks *IntegrityService, req TransferRequest, quantity decimal.Decimal) ([]string, error) {
	numbers := uniqueStrings(req.BatchNumbers)
	if len(numbers) == 0 {
		return []string{}, nil
	}

	batches, err := tx.Batch.FindByNumbers(ctx, req.CompanyID, numbers, repository.LockUpdate)
	if err != nil {
		return nil, err
	}
	if len(batches) != len(numbers) {
		return nil, apperr.NotFound("batch")
	}

	ids := make([]string, 0, len(batches))
	total := decimal.Zero
	for _, b := range batches {
		switch {
		case b.ProductID != req.ProductID:
			return nil, apperr.Validation("batch %s is not of product %s", b.BatchNumber, req.ProductID)
		case b.WarehouseID != req.SourceWarehouseID:
			return nil, apperr.Validation("batch %s is not stored in the source warehouse", b.BatchNumber)
		case b.Status != entity.BatchStatusActive:
			return nil, apperr.Validation("batch %s is %s", b.BatchNumber, b.Status)
		}
		if err := checks.ValidateBatchOwnership(ctx, b.ID, req.CompanyID); err != nil {
			return nil, err
		}
		ids = append(ids, b.ID)
		total = total.Add(b.Quantity)
	}
	if total.GreaterThan(quantity) {
		return nil, apperr.Validation("listed batches hold %s, more than the transferred %s",
			total.StringFixed(quantityPlaces), quantity.StringFixed(quantityPlaces))
	}

	if err := tx.Batch.MoveToWarehouse(ctx, ids, req.TargetWarehouseID); err != nil {
		return nil, err
	}
	return numbers, nil
}

// LowStockStatus 低库存检查结果
type LowStockStatus struct {
	InventoryID     string              `json:"inventory_id"`
	IsLow           bool                `json:"is_low"`
	CurrentQuantity decimal.Decimal     `json:"current_quantity"`
	Threshold       decimal.NullDecimal `json:"threshold"`
}

// CheckLowStockThresholds reports whether quantity is at or below min_threshold. A row
// without a threshold is never low.
func (s *InventoryService) CheckLowStockThresholds(ctx context.Context, inventoryID string) (*LowStockStatus, error) {
	inv, err := s.repos.Inventory.FindByID(ctx, inventoryID, repository.LockNone)
	if err != nil {
		return nil, err
	}
	return &LowStockStatus{
		InventoryID:     inv.ID,
		IsLow:           inv.MinThreshold.Valid && inv.Quantity.LessThanOrEqual(inv.MinThreshold.Decimal),
		CurrentQuantity: inv.Quantity,
		Threshold:       inv.MinThreshold,
	}, nil
}

// GetInventory 按公司读取库存行
func (s *InventoryService) GetInventory(ctx context.Context, companyID, inventoryID string) (*entity.Inventory, error) {
	return s.repos.Inventory.FindByIDAndCompany(ctx, inventoryID, companyID, repository.LockNone)
}

// ListTransactions 库存流水
func (s *InventoryService) ListTransactions(ctx context.Context, inventoryID string, page, size int) ([]entity.InventoryTransaction, int64, error) {
	return s.repos.Inventory.ListTransactions(ctx, inventoryID, page, size)
}

type movement struct {
	txType  string
	reason  string
	refType string
	refID   string
	userID  string
}

// applyDelta writes quantity+delta to a row the caller has locked FOR UPDATE, appends the
// ledger row and stamps the reorder date when due. inv is updated in place.
func (s *InventoryService) applyDelta(ctx context.Context, tx *repository.Repositories, inv *entity.Inventory, delta decimal.Decimal, m movement) (*ReorderEvent, error) {
	before := inv.Quantity
	after := roundQty(before.Add(delta))
	if after.IsNegative() {
		return nil, apperr.InsufficientInventory(before, delta.Abs())
	}

	if err := tx.Inventory.UpdateQuantity(ctx, inv.ID, after); err != nil {
		return nil, err
	}
	err := tx.Inventory.CreateTransaction(ctx, &entity.InventoryTransaction{
		ID:              uuid.New().String(),
		InventoryID:     inv.ID,
		CompanyID:       inv.CompanyID,
		ProductID:       inv.ProductID,
		WarehouseID:     inv.WarehouseID,
		TransactionType: m.txType,
		Quantity:        delta,
		QuantityBefore:  before,
		QuantityAfter:   after,
		Reason:          m.reason,
		ReferenceType:   m.refType,
		ReferenceID:     m.refID,
		CreatedBy:       m.userID,
	})
	if err != nil {
		return nil, err
	}
	inv.Quantity = after

	if !inv.ReorderDue(after) {
		return nil, nil
	}
	now := s.now()
	if err := tx.Inventory.StampReorder(ctx, inv.ID, now); err != nil {
		return nil, err
	}
	inv.LastReorderDate = &now
	return &ReorderEvent{
		InventoryID:     inv.ID,
		CompanyID:       inv.CompanyID,
		ProductID:       inv.ProductID,
		WarehouseID:     inv.WarehouseID,
		Quantity:        after,
		ReorderPoint:    inv.ReorderPoint.Decimal,
		ReorderQuantity: inv.ReorderQuantity,
		TriggeredAt:     now,
	}, nil
}

// notify 事务提交后发送补货事件，失败只记录日志
func (s *InventoryService) notify(ctx context.Context, events ...*ReorderEvent) {
	for _, evt := range events {
		if evt == nil {
			continue
		}
		if err := s.notifier.ReorderThresholdCrossed(ctx, *evt); err != nil {
			s.logger.Warn("reorder notification failed",
				zap.String("inventory_id", evt.InventoryID),
				zap.String("company_id", evt.CompanyID),
				zap.Error(err),
			)
		}
	}
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
