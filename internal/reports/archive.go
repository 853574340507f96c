// Package reports archives procedure run reports in object storage.
package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resourcehive/internal/models"
	"resourcehive/pkg/logger"
)

// ObjectStore is the subset of *minio.Client the archive uses
type ObjectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
}

// Archive writes each run report as JSON, and optionally as a PDF summary,
// under runs/<procedure>/<date>/
type Archive struct {
	client  ObjectStore
	bucket  string
	withPDF bool
}

func NewArchive(client ObjectStore, bucket string, withPDF bool) *Archive {
	return &Archive{client: client, bucket: bucket, withPDF: withPDF}
}

func (a *Archive) EnsureBucket(ctx context.Context) error {
	found, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}
	if !found {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// ObjectKey names the archived object of report with the given extension
func ObjectKey(report *models.RunReport, ext string) string {
	start := report.StartTime.UTC()
	return path.Join("runs", report.Procedure, start.Format("2006/01/02"),
		start.Format("150405.000000000")+"."+ext)
}

// Save uploads report and returns the key of its JSON object
func (a *Archive) Save(ctx context.Context, report *models.RunReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode run report: %w", err)
	}
	key := ObjectKey(report, "json")
	if err := a.put(ctx, key, data, "application/json"); err != nil {
		return "", err
	}

	if a.withPDF {
		pdf, err := RenderPDF(report)
		if err != nil {
			return key, fmt.Errorf("failed to render run report: %w", err)
		}
		if err := a.put(ctx, ObjectKey(report, "pdf"), pdf, "application/pdf"); err != nil {
			return key, err
		}
	}

	logger.Info(ctx).Str("procedure", report.Procedure).Str("key", key).Msg("run report archived")
	return key, nil
}

func (a *Archive) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns a time-limited download link for an archived object
func (a *Archive) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := a.client.PresignedGetObject(ctx, a.bucket, key, expiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
