package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/commerce/service"
)

type WarehouseHandler struct {
	svc *service.WarehouseService
}

func NewWarehouseHandler(svc *service.WarehouseService) *WarehouseHandler {
	return &WarehouseHandler{svc: svc}
}

func (h *WarehouseHandler) Get(c *gin.Context) {
	w, err := h.svc.Get(c.Request.Context(), c.Param("warehouseId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, w)
}

func (h *WarehouseHandler) Update(c *gin.Context) {
	tc, ok := tenantContext(c)
	if !ok {
		return
	}
	var req service.UpdateWarehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	w, err := h.svc.Update(c.Request.Context(), tc, c.Param("warehouseId"), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, w)
}

type ProductHandler struct {
	repo *repository.ProductRepository
}

func NewProductHandler(repo *repository.ProductRepository) *ProductHandler {
	return &ProductHandler{repo: repo}
}

func (h *ProductHandler) Get(c *gin.Context) {
	p, err := h.repo.FindByID(c.Request.Context(), c.Param("productId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, p)
}
