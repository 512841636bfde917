package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
)

// ReportArchive 完整性报告归档
type ReportArchive interface {
	Store(ctx context.Context, report *IntegrityReport) (string, error)
}

// MinioReportArchive stores reports as JSON objects under <prefix>/<company>/<timestamp>.json.
type MinioReportArchive struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioReportArchive(client *minio.Client, bucket, prefix string) *MinioReportArchive {
	if prefix == "" {
		prefix = "integrity"
	}
	return &MinioReportArchive{client: client, bucket: bucket, prefix: prefix}
}

// ObjectName 报告对象名
func (a *MinioReportArchive) ObjectName(report *IntegrityReport) string {
	company := report.CompanyID
	if company == "" {
		company = "all"
	}
	return path.Join(a.prefix, company, report.CheckedAt.UTC().Format("20060102T150405Z")+".json")
}

func (a *MinioReportArchive) Store(ctx context.Context, report *IntegrityReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal integrity report: %w", err)
	}
	name := a.ObjectName(report)
	_, err = a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload integrity report: %w", err)
	}
	return name, nil
}
