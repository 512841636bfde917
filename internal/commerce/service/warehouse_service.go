package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"github.com/tienbob/Tubex-sub002/internal/tenant"
)

// WarehouseService 仓库服务
type WarehouseService struct {
	repo *repository.WarehouseRepository
}

func NewWarehouseService(repo *repository.WarehouseRepository) *WarehouseService {
	return &WarehouseService{repo: repo}
}

// UpdateWarehouseRequest 更新仓库请求。CompanyID 只用于拒绝归属变更
type UpdateWarehouseRequest struct {
	Name      *string          `json:"name"`
	Address   *string          `json:"address"`
	Capacity  *decimal.Decimal `json:"capacity"`
	Type      *string          `json:"type"`
	Status    *string          `json:"status"`
	CompanyID *string          `json:"company_id"`
}

var (
	warehouseTypes = map[string]bool{
		entity.WarehouseTypeMain:         true,
		entity.WarehouseTypeSatellite:    true,
		entity.WarehouseTypeThirdParty:   true,
		entity.WarehouseTypeDistribution: true,
	}
	warehouseStatuses = map[string]bool{
		entity.WarehouseStatusActive:      true,
		entity.WarehouseStatusInactive:    true,
		entity.WarehouseStatusMaintenance: true,
	}
)

// Get 获取仓库
func (s *WarehouseService) Get(ctx context.Context, id string) (*entity.Warehouse, error) {
	return s.repo.FindByID(ctx, id)
}

// Update changes the mutable fields of a warehouse of the principal's company.
// Ownership cannot be reassigned.
func (s *WarehouseService) Update(ctx context.Context, tc *tenant.Context, id string, req UpdateWarehouseRequest) (*entity.Warehouse, error) {
	w, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.CompanyID != tc.CompanyID() {
		return nil, apperr.AccessDenied("warehouse %s belongs to company %s", id, w.CompanyID)
	}
	if req.CompanyID != nil && *req.CompanyID != w.CompanyID {
		return nil, apperr.Validation("warehouse ownership cannot be reassigned")
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, apperr.Validation("name must not be empty")
		}
		w.Name = *req.Name
	}
	if req.Address != nil {
		w.Address = *req.Address
	}
	if req.Capacity != nil {
		if req.Capacity.IsNegative() {
			return nil, apperr.Validation("capacity must not be negative")
		}
		w.Capacity = roundQty(*req.Capacity)
	}
	if req.Type != nil {
		if !warehouseTypes[*req.Type] {
			return nil, apperr.Validation("unknown warehouse type %q", *req.Type)
		}
		w.Type = *req.Type
	}
	if req.Status != nil {
		if !warehouseStatuses[*req.Status] {
			return nil, apperr.Validation("unknown warehouse status %q", *req.Status)
		}
		w.Status = *req.Status
	}
	w.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}
