package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"polls-service/internal/config"
	"polls-service/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOClient archives final poll results as JSON objects.
type MinIOClient struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient creates a new MinIO client and makes sure the bucket exists.
func NewMinIOClient(ctx context.Context, cfg config.MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	slog.Info("Connected to MinIO", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return &MinIOClient{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// ArchiveObjectName is the object key of a snapshot taken at t.
func ArchiveObjectName(pollID uint, t time.Time) string {
	return fmt.Sprintf("polls/%d/results-%d.json", pollID, t.Unix())
}

// ArchiveResults uploads a JSON snapshot and returns the object URL.
func (m *MinIOClient) ArchiveResults(ctx context.Context, results *models.PollResults) (string, error) {
	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}

	objectName := ArchiveObjectName(results.Poll.ID, time.Now())
	_, err = m.client.PutObject(ctx, m.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload results: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", m.client.EndpointURL().String(), m.bucket, objectName)
	return url, nil
}
