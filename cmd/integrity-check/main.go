// Command integrity-check runs the comprehensive tenant integrity check against the
// configured database and exits non-zero when any report contains errors.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/commerce/service"
	"github.com/tienbob/Tubex-sub002/internal/config"
	"github.com/tienbob/Tubex-sub002/internal/migrations"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	companyID := flag.String("company", "", "company id to check (default: every company)")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if cfg.Database.Migrate {
		version, dirty, err := migrations.Version(cfg.Database.URL())
		if err != nil {
			zapLogger.Fatal("Failed to read schema version", zap.Error(err))
		}
		if dirty {
			zapLogger.Fatal("Schema is dirty, fix the failed migration first", zap.Uint("version", version))
		}
		zapLogger.Info("schema version", zap.Uint("version", version))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	repos := repository.NewRepositories(db)
	// 只做检查，不需要 redis
	services := service.NewServices(repos, nil, cfg, zapLogger)

	code := run(ctx, services.Integrity, *companyID, zapLogger)
	cancel()
	stop()
	_ = zapLogger.Sync()
	os.Exit(code)
}

func run(ctx context.Context, integrity *service.IntegrityService, companyID string, zapLogger *zap.Logger) int {
	var reports []*service.IntegrityReport
	if companyID != "" {
		report, err := integrity.RunComprehensiveIntegrityCheck(ctx, companyID)
		if err != nil {
			zapLogger.Error("integrity check failed", zap.String("company_id", companyID), zap.Error(err))
			return 2
		}
		reports = append(reports, report)
	} else {
		var err error
		reports, err = integrity.RunForAllCompanies(ctx)
		if err != nil {
			zapLogger.Error("integrity check failed", zap.Error(err))
			return 2
		}
	}

	invalid := 0
	for _, r := range reports {
		fields := []zap.Field{
			zap.String("company_id", r.CompanyID),
			zap.Bool("valid", r.IsValid),
			zap.Int("errors", len(r.Errors)),
			zap.Int("warnings", len(r.Warnings)),
		}
		if r.ArchiveObject != "" {
			fields = append(fields, zap.String("archive", r.ArchiveObject))
		}
		if r.IsValid {
			zapLogger.Info("integrity report", fields...)
			continue
		}
		invalid++
		zapLogger.Warn("integrity report", fields...)
		for _, issue := range r.Errors {
			zapLogger.Warn("integrity error",
				zap.String("company_id", r.CompanyID),
				zap.String("code", issue.Code),
				zap.String("entity_type", issue.EntityType),
				zap.String("entity_id", issue.EntityID),
				zap.String("message", issue.Message),
			)
		}
	}

	fmt.Printf("%d reports, %d invalid\n", len(reports), invalid)
	if invalid > 0 {
		return 1
	}
	return 0
}
