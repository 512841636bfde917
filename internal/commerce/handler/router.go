package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/service"
	"github.com/tienbob/Tubex-sub002/internal/middleware"
)

// RouteOptions 路由依赖
type RouteOptions struct {
	JWTSecret string
	RateLimit middleware.RateLimitOptions
}

// RegisterRoutes 注册路由
func RegisterRoutes(r *gin.Engine, h *Handlers, svc *service.Services, opts RouteOptions) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	guard, audit := svc.Guard, svc.Audit
	if opts.RateLimit.Audit == nil {
		opts.RateLimit.Audit = audit
	}
	owns := func(resourceType, param string) gin.HandlerFunc {
		return middleware.RequireOwnership(guard, audit, resourceType, param)
	}

	v1 := r.Group("/api/v1")
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(opts.JWTSecret))
	authorized.Use(middleware.CompanyRateLimit(opts.RateLimit))

	company := authorized.Group("/companies/:companyId")
	company.Use(middleware.RequireCompanyAccess(guard, audit))
	{
		// 仓库
		company.GET("/warehouses/:warehouseId", owns(service.ResourceWarehouse, "warehouseId"), h.Warehouse.Get)
		company.PUT("/warehouses/:warehouseId", owns(service.ResourceWarehouse, "warehouseId"), h.Warehouse.Update)

		// 产品
		company.GET("/products/:productId", owns(service.ResourceProduct, "productId"), h.Product.Get)

		// 库存
		inventory := company.Group("/inventory")
		{
			inventory.POST("/check-availability", h.Inventory.CheckAvailability)
			inventory.POST("/transfer",
				middleware.AuditSecurityEvent(audit, entity.SecurityEventStockTransfer),
				h.Inventory.Transfer)
			inventory.GET("/:inventoryId", owns(service.ResourceInventory, "inventoryId"), h.Inventory.Get)
			inventory.GET("/:inventoryId/low-stock", owns(service.ResourceInventory, "inventoryId"), h.Inventory.LowStock)
			inventory.GET("/:inventoryId/transactions", owns(service.ResourceInventory, "inventoryId"), h.Inventory.Transactions)
			inventory.POST("/:inventoryId/adjust",
				owns(service.ResourceInventory, "inventoryId"),
				middleware.AuditSecurityEvent(audit, entity.SecurityEventInventoryAdjustment),
				h.Inventory.Adjust)
		}

		// 批次
		company.POST("/batches/check-availability", h.Inventory.CheckBatchAvailability)

		// 订单
		company.POST("/orders", h.Order.Place)
		company.GET("/orders/:orderId", owns(service.ResourceOrder, "orderId"), h.Order.Get)
		company.POST("/orders/:orderId/cancel", owns(service.ResourceOrder, "orderId"), h.Order.Cancel)

		// 完整性与审计（仅管理员）
		admin := company.Group("")
		admin.Use(middleware.RequireRole(entity.UserRoleAdmin))
		{
			admin.GET("/integrity",
				middleware.AuditSecurityEvent(audit, entity.SecurityEventIntegrityCheck),
				h.Integrity.Run)
			admin.GET("/integrity/reconcile", h.Integrity.Reconcile)
			admin.GET("/integrity/payments/:paymentId", h.Integrity.CheckPayment)
			admin.GET("/audit-logs", h.Audit.List)
		}
	}
}
