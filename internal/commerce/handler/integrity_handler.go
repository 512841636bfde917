package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/tienbob/Tubex-sub002/internal/commerce/service"
)

type IntegrityHandler struct {
	svc *service.IntegrityService
}

func NewIntegrityHandler(svc *service.IntegrityService) *IntegrityHandler {
	return &IntegrityHandler{svc: svc}
}

// Run 执行本公司完整性检查
func (h *IntegrityHandler) Run(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	report, err := h.svc.RunComprehensiveIntegrityCheck(c.Request.Context(), tc.CompanyID())
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, report)
}

// Reconcile 批次与库存对账
func (h *IntegrityHandler) Reconcile(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	productID := c.Query("product_id")
	warehouseID := c.Query("warehouse_id")
	if productID == "" || warehouseID == "" {
		BadRequest(c, "product_id and warehouse_id are required")
		return
	}
	result, err := h.svc.ValidateBatchInventoryConsistency(c.Request.Context(), productID, warehouseID, tc.CompanyID())
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// CheckPayment 校验付款及其关联订单、发票属于本公司
func (h *IntegrityHandler) CheckPayment(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	paymentID := c.Param("paymentId")
	if err := h.svc.ValidatePaymentOwnership(c.Request.Context(), paymentID, tc.CompanyID()); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"payment_id": paymentID, "valid": true})
}

type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// List 本公司安全审计日志
func (h *AuditHandler) List(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), tc.CompanyID(), c.Query("event"), page, pageSize)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": items, "total": total, "page": page, "page_size": pageSize})
}
