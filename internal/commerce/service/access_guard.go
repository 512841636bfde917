package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"github.com/tienbob/Tubex-sub002/internal/tenant"
	"go.uber.org/zap"
)

// AccessGuard enforces that a principal only touches its own company's rows.
type AccessGuard struct {
	repos  *repository.Repositories
	policy *OwnershipPolicy
	logger *zap.Logger
}

// NewAccessGuard 创建访问守卫，policy 为 nil 时使用默认策略
func NewAccessGuard(repos *repository.Repositories, policy *OwnershipPolicy, logger *zap.Logger) *AccessGuard {
	if policy == nil {
		policy = DefaultOwnershipPolicy()
	}
	return &AccessGuard{repos: repos, policy: policy, logger: logger}
}

// ValidateCompanyAccess requires the requested company to be the principal's own company and
// to be active. There are no role based exceptions. On success the company type is cached on tc.
func (g *AccessGuard) ValidateCompanyAccess(ctx context.Context, tc *tenant.Context, requestedCompanyID string) error {
	if tc == nil {
		return apperr.AccessDenied("no authenticated principal")
	}
	if requestedCompanyID == "" || requestedCompanyID != tc.CompanyID() {
		return apperr.AccessDenied("user %s of company %s requested company %s",
			tc.Principal.UserID, tc.CompanyID(), requestedCompanyID)
	}
	if tc.CompanyAccessValidated() {
		return nil
	}

	company, err := g.repos.Company.FindByID(ctx, requestedCompanyID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.AccessDenied("company %s does not exist", requestedCompanyID)
	}
	if err != nil {
		return err
	}
	if !company.IsActive() {
		return fmt.Errorf("%w: company %s is %s", apperr.ErrCompanyInactive, company.ID, company.Status)
	}

	tc.MarkCompanyAccessValidated(company.Type)
	return nil
}

// ValidateResourceOwnership checks that the resource belongs to the principal's company.
// ValidateCompanyAccess must have passed first on the same tenant context.
func (g *AccessGuard) ValidateResourceOwnership(ctx context.Context, tc *tenant.Context, resourceType, resourceID string) error {
	if !tc.CompanyAccessValidated() {
		return apperr.Internal("ownership of %s %s checked before company access", resourceType, resourceID)
	}
	check, ok := g.policy.Lookup(resourceType)
	if !ok {
		return apperr.Internal("no ownership policy for resource type %q", resourceType)
	}

	err := check(ctx, g.repos, tc.CompanyID(), tc.CompanyType, resourceID)
	if err != nil && errors.Is(err, apperr.ErrAccessDenied) {
		g.logger.Warn("cross tenant access denied",
			zap.String("user_id", tc.Principal.UserID),
			zap.String("company_id", tc.CompanyID()),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
	}
	return err
}
