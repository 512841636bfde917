package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/tienbob/Tubex-sub002/internal/commerce/service"
)

type OrderHandler struct {
	svc *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// Place 下单并扣减供货仓库存
func (h *OrderHandler) Place(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	order, err := h.svc.PlaceOrder(c.Request.Context(), tc, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, order)
}

func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, order)
}

// Cancel 取消订单并回补库存
func (h *OrderHandler) Cancel(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	order, err := h.svc.CancelOrder(c.Request.Context(), tc, c.Param("orderId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, order)
}
