package service

import (
	"context"
	"errors"
	"testing"

	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/commerce/testutil"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"github.com/tienbob/Tubex-sub002/internal/tenant"
	"go.uber.org/zap"
)

func principal(companyID, role string) *tenant.Context {
	return tenant.New(tenant.Principal{UserID: "u-" + companyID, CompanyID: companyID, Role: role})
}

func TestValidateCompanyAccess(t *testing.T) {
	f := setupServiceTest(t)

	cases := []struct {
		name      string
		tc        *tenant.Context
		requested string
		want      error
	}{
		{"own company", principal("sup1", entity.UserRoleStaff), "sup1", nil},
		{"other company", principal("sup1", entity.UserRoleStaff), "sup2", apperr.ErrAccessDenied},
		{"admin gets no exception", principal("sup1", entity.UserRoleAdmin), "sup2", apperr.ErrAccessDenied},
		{"empty request", principal("sup1", entity.UserRoleStaff), "", apperr.ErrAccessDenied},
		{"no principal", nil, "sup1", apperr.ErrAccessDenied},
		{"suspended company", principal("susp", entity.UserRoleAdmin), "susp", apperr.ErrCompanyInactive},
		{"missing company", principal("ghost", entity.UserRoleStaff), "ghost", apperr.ErrAccessDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.guard.ValidateCompanyAccess(f.ctx, tc.tc, tc.requested)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Expected access, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("Expected %v, got %v", tc.want, err)
			}
			if tc.tc.CompanyAccessValidated() {
				t.Error("failed check must not mark the context validated")
			}
		})
	}
}

func TestValidateCompanyAccess_CachesCompanyType(t *testing.T) {
	f := setupServiceTest(t)

	tc := principal("dealer1", entity.UserRoleStaff)
	if err := f.guard.ValidateCompanyAccess(f.ctx, tc, "dealer1"); err != nil {
		t.Fatalf("ValidateCompanyAccess failed: %v", err)
	}
	if !tc.CompanyAccessValidated() || tc.CompanyType != entity.CompanyTypeDealer {
		t.Fatalf("Expected validated dealer context, got %+v", tc)
	}

	// 已校验的上下文不再查库，但仍拒绝其他公司
	f.db.Model(&entity.Company{}).Where("id = ?", "dealer1").Update("status", entity.CompanyStatusSuspended)
	if err := f.guard.ValidateCompanyAccess(f.ctx, tc, "dealer1"); err != nil {
		t.Errorf("Expected cached result within the request, got %v", err)
	}
	if err := f.guard.ValidateCompanyAccess(f.ctx, tc, "sup1"); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Errorf("Expected access denied for other company, got %v", err)
	}
}

func TestValidateResourceOwnership_RequiresCompanyAccessFirst(t *testing.T) {
	f := setupServiceTest(t)

	err := f.guard.ValidateResourceOwnership(f.ctx, principal("sup1", entity.UserRoleAdmin), ResourceInventory, "inv1")
	if !errors.Is(err, apperr.ErrInternalConsistency) {
		t.Fatalf("Expected internal consistency error, got %v", err)
	}
	if apperr.HTTPStatus(err) != 500 {
		t.Errorf("Expected 500, got %d", apperr.HTTPStatus(err))
	}
}

func TestValidateResourceOwnership(t *testing.T) {
	f := setupServiceTest(t)
	testutil.Seed(t, f.db,
		testutil.Inventory("inv-foreign-product", "p3", "w2", "sup1", "1"),
		&entity.Order{ID: "o1", CompanyID: "dealer1", SupplierID: "sup1", WarehouseID: "w1", Status: entity.OrderStatusConfirmed},
	)

	supplier := testutil.ValidatedTenant("u1", "sup1", entity.CompanyTypeSupplier, entity.UserRoleStaff)
	dealer := testutil.ValidatedTenant("u2", "dealer1", entity.CompanyTypeDealer, entity.UserRoleStaff)
	other := testutil.ValidatedTenant("u3", "sup2", entity.CompanyTypeSupplier, entity.UserRoleAdmin)

	cases := []struct {
		name     string
		tc       *tenant.Context
		resource string
		id       string
		want     error
	}{
		{"supplier owns inventory", supplier, ResourceInventory, "inv1", nil},
		{"other tenant inventory", other, ResourceInventory, "inv1", apperr.ErrAccessDenied},
		{"missing inventory", supplier, ResourceInventory, "nope", apperr.ErrNotFound},
		{"inventory with foreign product", supplier, ResourceInventory, "inv-foreign-product", apperr.ErrAccessDenied},
		{"supplier owns product", supplier, ResourceProduct, "p1", nil},
		{"dealer owns product through dealer_id", dealer, ResourceProduct, "p1", nil},
		{"dealer without dealer_id", dealer, ResourceProduct, "p2", apperr.ErrAccessDenied},
		{"other supplier product", other, ResourceProduct, "p1", apperr.ErrAccessDenied},
		{"own warehouse", supplier, ResourceWarehouse, "w2", nil},
		{"other warehouse", other, ResourceWarehouse, "w1", apperr.ErrAccessDenied},
		{"order buyer", dealer, ResourceOrder, "o1", nil},
		{"order supplier", supplier, ResourceOrder, "o1", nil},
		{"unrelated order", other, ResourceOrder, "o1", apperr.ErrAccessDenied},
		{"unknown resource type", supplier, "invoice", "x", apperr.ErrInternalConsistency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.guard.ValidateResourceOwnership(f.ctx, tc.tc, tc.resource, tc.id)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Expected ownership, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOwnershipPolicy_Register(t *testing.T) {
	f := setupServiceTest(t)

	policy := DefaultOwnershipPolicy()
	policy.Register("invoice", func(ctx context.Context, repos *repository.Repositories, companyID, _ string, id string) error {
		invoice, err := repos.Invoice.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if invoice.CompanyID != companyID {
			return apperr.AccessDenied("invoice %s", id)
		}
		return nil
	})
	testutil.Seed(t, f.db, &entity.Invoice{ID: "i1", CompanyID: "sup1", Status: entity.InvoiceStatusDraft})

	guard := NewAccessGuard(f.repos, policy, zap.NewNop())
	own := testutil.ValidatedTenant("u1", "sup1", entity.CompanyTypeSupplier, entity.UserRoleStaff)
	if err := guard.ValidateResourceOwnership(f.ctx, own, "invoice", "i1"); err != nil {
		t.Fatalf("Expected registered check to pass, got %v", err)
	}
	other := testutil.ValidatedTenant("u2", "sup2", entity.CompanyTypeSupplier, entity.UserRoleStaff)
	if err := guard.ValidateResourceOwnership(f.ctx, other, "invoice", "i1"); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("Expected access denied, got %v", err)
	}
}

func TestProductOwner(t *testing.T) {
	dealer := "d1"
	p := &entity.Product{SupplierID: "s1", DealerID: &dealer}
	if got := ProductOwner(p, entity.CompanyTypeSupplier); got != "s1" {
		t.Errorf("supplier view: expected s1, got %q", got)
	}
	if got := ProductOwner(p, entity.CompanyTypeDealer); got != "d1" {
		t.Errorf("dealer view: expected d1, got %q", got)
	}
	if got := ProductOwner(&entity.Product{SupplierID: "s1"}, entity.CompanyTypeDealer); got != "" {
		t.Errorf("dealer view without dealer_id: expected empty, got %q", got)
	}
	if got := ProductOwner(p, "unknown"); got != "" {
		t.Errorf("unknown type: expected empty, got %q", got)
	}
}
