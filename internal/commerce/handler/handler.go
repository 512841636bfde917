package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/commerce/service"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"github.com/tienbob/Tubex-sub002/internal/tenant"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Inventory *InventoryHandler
	Warehouse *WarehouseHandler
	Product   *ProductHandler
	Order     *OrderHandler
	Integrity *IntegrityHandler
	Audit     *AuditHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, repos *repository.Repositories, logger *zap.Logger) *Handlers {
	return &Handlers{
		Inventory: NewInventoryHandler(svc.Inventory, svc.Guard, logger),
		Warehouse: NewWarehouseHandler(svc.Warehouse),
		Product:   NewProductHandler(repos.Product),
		Order:     NewOrderHandler(svc.Order),
		Integrity: NewIntegrityHandler(svc.Integrity),
		Audit:     NewAuditHandler(svc.Audit),
	}
}

// Response 通用响应结构
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// RespondError maps a service error onto the response envelope. Quantity failures carry
// the available and requested amounts.
func RespondError(c *gin.Context, err error) {
	resp := Response{
		Code:      apperr.BusinessCode(err),
		Message:   apperr.ClientMessage(err),
		Retryable: apperr.IsRetryable(err),
	}
	var qe *apperr.QuantityError
	if errors.As(err, &qe) {
		resp.Data = gin.H{
			"available": qe.Available,
			"requested": qe.Requested,
		}
	}
	var ee *apperr.ExpiredError
	if errors.As(err, &ee) {
		resp.Data = gin.H{
			"batch_number": ee.BatchNumber,
			"expiry_date":  ee.ExpiryDate,
		}
	}
	_ = c.Error(err)
	c.JSON(apperr.HTTPStatus(err), resp)
}

// tenantContext 取认证中间件挂载的租户上下文
func tenantContext(c *gin.Context) (*tenant.Context, bool) {
	tc, ok := tenant.FromGin(c)
	if !ok {
		RespondError(c, apperr.Internal("handler reached without tenant context"))
	}
	return tc, ok
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
