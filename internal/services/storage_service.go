// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/retail-backend/internal/config"
	"github.com/javajoker/retail-backend/internal/utils"
)

// StorageService reads price lists from S3 and archives uploaded ones.
// Without AWS credentials archives go to the local filesystem.
type StorageService struct {
	s3Client   s3iface.S3API
	bucket     string
	region     string
	localDir   string
	maxObjSize int64
}

type UploadResult struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	svc := &StorageService{
		bucket:     cfg.AWS.S3Bucket,
		region:     cfg.AWS.Region,
		localDir:   cfg.Ingestion.LocalArchiveDir,
		maxObjSize: cfg.Ingestion.MaxDocumentSize,
	}

	if cfg.AWS.AccessKeyID == "" {
		// Local development without S3
		return svc, nil
	}

	awsConfig := &aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	}
	if cfg.AWS.S3Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.AWS.S3Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc.s3Client = s3.New(sess)
	return svc, nil
}

// NewStorageServiceWithClient is used when the caller already owns an S3 client.
func NewStorageServiceWithClient(client s3iface.S3API, bucket, localDir string, maxObjSize int64) *StorageService {
	return &StorageService{
		s3Client:   client,
		bucket:     bucket,
		localDir:   localDir,
		maxObjSize: maxObjSize,
	}
}

func (s *StorageService) HasS3() bool {
	return s.s3Client != nil
}

// Download fetches bucket/key, refusing objects larger than the configured cap.
func (s *StorageService) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	if s.s3Client == nil {
		return nil, fmt.Errorf("%w: S3 client not configured", ErrTransportFailure)
	}

	out, err := s.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to download s3://%s/%s: %v", ErrTransportFailure, bucket, key, err)
	}
	defer out.Body.Close()

	if s.maxObjSize > 0 && out.ContentLength != nil && *out.ContentLength > s.maxObjSize {
		return nil, documentTooLarge(s.maxObjSize)
	}

	return readLimited(out.Body, s.maxObjSize)
}

// ArchivePriceList keeps a copy of an uploaded document, keyed by shop and content hash.
func (s *StorageService) ArchivePriceList(ctx context.Context, shopID uuid.UUID, data []byte) (*UploadResult, error) {
	key := s.archiveKey(shopID, data)

	if s.s3Client != nil {
		_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentType:   aws.String("application/yaml"),
			ContentLength: aws.Int64(int64(len(data))),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload to S3: %w", err)
		}
		return &UploadResult{URL: s.getS3URL(key), Key: key, Size: int64(len(data))}, nil
	}

	return s.uploadToLocal(data, key)
}

func (s *StorageService) uploadToLocal(data []byte, key string) (*UploadResult, error) {
	path := filepath.Join(s.localDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}

	logrus.WithField("path", path).Debug("Price list archived locally")
	return &UploadResult{URL: "file://" + path, Key: key, Size: int64(len(data))}, nil
}

func (s *StorageService) archiveKey(shopID uuid.UUID, data []byte) string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("price-lists/%s/%s_%s.yaml", shopID, timestamp, utils.HashBytes(data)[:12])
}

func (s *StorageService) getS3URL(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	if int64(len(data)) > limit {
		return nil, documentTooLarge(limit)
	}
	return data, nil
}
