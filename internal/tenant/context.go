// Package tenant carries the authenticated principal and its company scope
// through a single request.
package tenant

import (
	"context"

	"github.com/gin-gonic/gin"
)

// GinKey is the gin context key holding *Context.
const GinKey = "tenant_context"

type ctxKey struct{}

// Principal is the verified identity supplied by the auth subsystem.
type Principal struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
	Email     string `json:"email"`
}

// Context 单次请求内的租户上下文
type Context struct {
	Principal   Principal
	CompanyType string

	companyAccessValidated bool
}

// New returns a context for p with no guard checks passed yet.
func New(p Principal) *Context {
	return &Context{Principal: p}
}

// CompanyID is the principal's company.
func (c *Context) CompanyID() string {
	return c.Principal.CompanyID
}

// MarkCompanyAccessValidated records that the company guard has passed and caches the company type.
func (c *Context) MarkCompanyAccessValidated(companyType string) {
	c.CompanyType = companyType
	c.companyAccessValidated = true
}

// CompanyAccessValidated reports whether the company guard has run for this request.
func (c *Context) CompanyAccessValidated() bool {
	return c != nil && c.companyAccessValidated
}

// WithContext stores tc in ctx.
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext returns the tenant context stored in ctx, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(*Context)
	return tc, ok && tc != nil
}

// Attach stores tc on the gin context and on the request context.
func Attach(c *gin.Context, tc *Context) {
	c.Set(GinKey, tc)
	c.Set("user_id", tc.Principal.UserID)
	c.Set("company_id", tc.Principal.CompanyID)
	c.Request = c.Request.WithContext(WithContext(c.Request.Context(), tc))
}

// FromGin returns the tenant context attached by the auth middleware.
func FromGin(c *gin.Context) (*Context, bool) {
	v, ok := c.Get(GinKey)
	if !ok {
		return nil, false
	}
	tc, ok := v.(*Context)
	return tc, ok && tc != nil
}
