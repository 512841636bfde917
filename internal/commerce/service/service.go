package service

import (
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/config"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	Guard     *AccessGuard
	Audit     *AuditService
	Inventory *InventoryService
	Order     *OrderService
	Warehouse *WarehouseService
	Integrity *IntegrityService
}

// NewServices 创建服务集合。rdb 为 nil 时补货事件不发送
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	var notifier ReorderNotifier = NopReorderNotifier{}
	if rdb != nil {
		notifier = NewRedisReorderPublisher(rdb, ReorderChannel)
	}

	// 初始化MinIO客户端
	var archive ReportArchive
	if cfg.MinIO.Endpoint != "" {
		minioClient, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio unavailable, integrity reports will not be archived", zap.Error(err))
		} else {
			archive = NewMinioReportArchive(minioClient, cfg.MinIO.Bucket, cfg.Integrity.ArchivePrefix)
		}
	}

	inventory := NewInventoryService(repos, notifier, logger)
	return &Services{
		Guard:     NewAccessGuard(repos, DefaultOwnershipPolicy(), logger),
		Audit:     NewAuditService(repos.SecurityLog, logger),
		Inventory: inventory,
		Order:     NewOrderService(repos, inventory, logger),
		Warehouse: NewWarehouseService(repos.Warehouse),
		Integrity: NewIntegrityService(repos, archive, logger,
			cfg.Integrity.BatchWarnThreshold, cfg.Integrity.PaymentWarnThreshold),
	}
}
