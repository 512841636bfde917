package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tienbob/Tubex-sub002/internal/commerce/service"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	svc    *service.InventoryService
	guard  *service.AccessGuard
	logger *zap.Logger
}

func NewInventoryHandler(svc *service.InventoryService, guard *service.AccessGuard, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{svc: svc, guard: guard, logger: logger}
}

// Get 获取库存行
func (h *InventoryHandler) Get(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	inv, err := h.svc.GetInventory(c.Request.Context(), tc.CompanyID(), c.Param("inventoryId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, inv)
}

// LowStock 低库存检查
func (h *InventoryHandler) LowStock(c *gin.Context) {
	status, err := h.svc.CheckLowStockThresholds(c.Request.Context(), c.Param("inventoryId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, status)
}

// Transactions 库存流水
func (h *InventoryHandler) Transactions(c *gin.Context) {
	page, size := GetPagination(c)
	items, total, err := h.svc.ListTransactions(c.Request.Context(), c.Param("inventoryId"), page, size)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items, "total": total, "page": page, "page_size": size})
}

type adjustBatchBody struct {
	BatchNumber       string                 `json:"batch_number"`
	ManufacturingDate *time.Time             `json:"manufacturing_date"`
	ExpiryDate        *time.Time             `json:"expiry_date"`
	Metadata          map[string]interface{} `json:"metadata"`
}

type adjustBody struct {
	Adjustment decimal.Decimal  `json:"adjustment"`
	Reason     string           `json:"reason" binding:"required"`
	Batch      *adjustBatchBody `json:"batch"`
}

// Adjust 调整库存数量
func (h *InventoryHandler) Adjust(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	var body adjustBody
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, err.Error())
		return
	}

	req := service.AdjustRequest{
		InventoryID: c.Param("inventoryId"),
		CompanyID:   tc.CompanyID(),
		Adjustment:  body.Adjustment,
		Reason:      body.Reason,
		UserID:      tc.Principal.UserID,
	}
	if body.Batch != nil {
		req.Batch = &service.BatchInfo{
			BatchNumber:       body.Batch.BatchNumber,
			ManufacturingDate: body.Batch.ManufacturingDate,
			ExpiryDate:        body.Batch.ExpiryDate,
			Metadata:          body.Batch.Metadata,
		}
	}

	inv, err := h.svc.AdjustInventoryQuantity(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, inv)
}

type stockCheckBody struct {
	ProductID   string          `json:"product_id" binding:"required"`
	WarehouseID string          `json:"warehouse_id" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// CheckAvailability 校验仓库库存是否充足。仓库必须属于本公司
func (h *InventoryHandler) CheckAvailability(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	var body stockCheckBody
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if err := h.guard.ValidateResourceOwnership(ctx, tc, service.ResourceWarehouse, body.WarehouseID); err != nil {
		RespondError(c, err)
		return
	}

	inv, err := h.svc.ValidateStockAvailability(ctx, tc.CompanyID(), body.ProductID, body.WarehouseID, body.Quantity, nil)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{
		"available":    true,
		"inventory_id": inv.ID,
		"quantity":     inv.Quantity,
		"requested":    body.Quantity,
	})
}

type batchCheckBody struct {
	BatchNumber string          `json:"batch_number" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// CheckBatchAvailability 校验批次可用量（过期批次不可用）
func (h *InventoryHandler) CheckBatchAvailability(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	var body batchCheckBody
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, err.Error())
		return
	}

	batch, err := h.svc.ValidateBatchAvailability(c.Request.Context(), tc.CompanyID(), body.BatchNumber, body.Quantity, nil)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{
		"available":    true,
		"batch_id":     batch.ID,
		"batch_number": batch.BatchNumber,
		"quantity":     batch.Quantity,
		"expiry_date":  batch.ExpiryDate,
	})
}

type transferBody struct {
	SourceWarehouseID string          `json:"source_warehouse_id" binding:"required"`
	TargetWarehouseID string          `json:"target_warehouse_id" binding:"required"`
	ProductID         string          `json:"product_id" binding:"required"`
	Quantity          decimal.Decimal `json:"quantity"`
	BatchNumbers      []string        `json:"batch_numbers"`
	Reason            string          `json:"reason"`
}

// Transfer 仓库间调拨
func (h *InventoryHandler) Transfer(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	var body transferBody
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.TransferStock(c.Request.Context(), service.TransferRequest{
		CompanyID:         tc.CompanyID(),
		SourceWarehouseID: body.SourceWarehouseID,
		TargetWarehouseID: body.TargetWarehouseID,
		ProductID:         body.ProductID,
		Quantity:          body.Quantity,
		BatchNumbers:      body.BatchNumbers,
		Reason:            body.Reason,
		UserID:            tc.Principal.UserID,
	})
	if err != nil {
		if apperr.IsRetryable(err) {
			h.logger.Warn("transfer conflict", zap.String("company_id", tc.CompanyID()), zap.Error(err))
		}
		RespondError(c, err)
		return
	}
	Success(c, result)
}
