package service

import (
	"context"
	"time"

	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/tenant"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AuditEvent 一条安全审计事件
type AuditEvent struct {
	Event     string
	ClientIP  string
	Method    string
	URL       string
	RequestID string
	Details   map[string]interface{}
}

// AuditService 安全审计
type AuditService struct {
	repo   *repository.SecurityAuditLogRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditService 创建审计服务
func NewAuditService(repo *repository.SecurityAuditLogRepository, logger *zap.Logger) *AuditService {
	return &AuditService{repo: repo, logger: logger, now: time.Now}
}

// Record writes the event synchronously. A storage failure is logged and swallowed so the
// request it describes is never blocked by the audit trail.
func (s *AuditService) Record(ctx context.Context, tc *tenant.Context, ev AuditEvent) {
	row := &entity.SecurityAuditLog{
		Event:     ev.Event,
		ClientIP:  ev.ClientIP,
		Method:    ev.Method,
		URL:       ev.URL,
		RequestID: ev.RequestID,
		CreatedAt: s.now(),
	}
	if tc != nil {
		row.UserID = tc.Principal.UserID
		row.CompanyID = tc.CompanyID()
		row.Role = tc.Principal.Role
	}
	if len(ev.Details) > 0 {
		row.Details = datatypes.JSONMap(ev.Details)
	}

	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("security audit write failed",
			zap.String("event", row.Event),
			zap.String("user_id", row.UserID),
			zap.String("company_id", row.CompanyID),
			zap.String("url", row.URL),
			zap.String("request_id", row.RequestID),
			zap.Error(err),
		)
	}
}

// List 分页查询本公司审计日志
func (s *AuditService) List(ctx context.Context, companyID, event string, page, pageSize int) ([]entity.SecurityAuditLog, int64, error) {
	return s.repo.FindByCompany(ctx, companyID, event, page, pageSize)
}
