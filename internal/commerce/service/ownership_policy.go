package service

import (
	"context"
	"errors"

	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
)

// 资源类型
const (
	ResourceProduct   = "product"
	ResourceInventory = "inventory"
	ResourceWarehouse = "warehouse"
	ResourceOrder     = "order"
)

// OwnershipCheck returns nil when companyID owns the resource, a NotFound error when the
// resource does not exist, and an AccessDenied error otherwise.
type OwnershipCheck func(ctx context.Context, repos *repository.Repositories, companyID, companyType, resourceID string) error

// OwnershipPolicy 资源归属策略注册表
type OwnershipPolicy struct {
	checks map[string]OwnershipCheck
}

// NewOwnershipPolicy returns an empty registry.
func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{checks: make(map[string]OwnershipCheck)}
}

// DefaultOwnershipPolicy registers the product, inventory, warehouse and order checks.
func DefaultOwnershipPolicy() *OwnershipPolicy {
	p := NewOwnershipPolicy()
	p.Register(ResourceProduct, checkProductOwnership)
	p.Register(ResourceInventory, checkInventoryOwnership)
	p.Register(ResourceWarehouse, checkWarehouseOwnership)
	p.Register(ResourceOrder, checkOrderOwnership)
	return p
}

// Register 注册或覆盖某类资源的归属检查
func (p *OwnershipPolicy) Register(resourceType string, check OwnershipCheck) {
	p.checks[resourceType] = check
}

// Lookup returns the check registered for resourceType.
func (p *OwnershipPolicy) Lookup(resourceType string) (OwnershipCheck, bool) {
	check, ok := p.checks[resourceType]
	return check, ok
}

// ProductOwner returns the company that owns product from the viewpoint of a company of
// companyType: suppliers own through supplier_id, dealers through dealer_id.
func ProductOwner(product *entity.Product, companyType string) string {
	switch companyType {
	case entity.CompanyTypeSupplier:
		return product.SupplierID
	case entity.CompanyTypeDealer:
		if product.DealerID != nil {
			return *product.DealerID
		}
	}
	return ""
}

func checkProductOwnership(ctx context.Context, repos *repository.Repositories, companyID, companyType, id string) error {
	product, err := repos.Product.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if ProductOwner(product, companyType) != companyID {
		return apperr.AccessDenied("product %s is not owned by company %s", id, companyID)
	}
	return nil
}

func checkInventoryOwnership(ctx context.Context, repos *repository.Repositories, companyID, companyType, id string) error {
	inv, err := repos.Inventory.FindByID(ctx, id, repository.LockNone)
	if err != nil {
		return err
	}
	if inv.CompanyID != companyID {
		return apperr.AccessDenied("inventory %s belongs to company %s", id, inv.CompanyID)
	}
	// 产品关联也必须属于本公司，防止外键被篡改
	product, err := repos.Product.FindByID(ctx, inv.ProductID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.AccessDenied("inventory %s references missing product %s", id, inv.ProductID)
	}
	if err != nil {
		return err
	}
	if ProductOwner(product, companyType) != companyID {
		return apperr.AccessDenied("inventory %s references product %s of another company", id, inv.ProductID)
	}
	return nil
}

func checkWarehouseOwnership(ctx context.Context, repos *repository.Repositories, companyID, _ string, id string) error {
	w, err := repos.Warehouse.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if w.CompanyID != companyID {
		return apperr.AccessDenied("warehouse %s belongs to company %s", id, w.CompanyID)
	}
	return nil
}

// 订单对下单方和供货方都可见
func checkOrderOwnership(ctx context.Context, repos *repository.Repositories, companyID, _ string, id string) error {
	order, err := repos.Order.FindByID(ctx, id, repository.LockNone)
	if err != nil {
		return err
	}
	if order.CompanyID != companyID && order.SupplierID != companyID {
		return apperr.AccessDenied("order %s is not associated with company %s", id, companyID)
	}
	return nil
}
