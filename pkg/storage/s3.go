package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/apperr"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
)

// S3Blob implements Blob against an S3 bucket.
type S3Blob struct {
	client  *s3.Client
	bucket  string
	metrics *observability.Metrics
}

// NewS3Blob creates a blob adapter over the given bucket. Metrics may
// be nil.
func NewS3Blob(client *s3.Client, bucket string, metrics *observability.Metrics) *S3Blob {
	return &S3Blob{client: client, bucket: bucket, metrics: metrics}
}

func (b *S3Blob) record(op string, err error, start time.Time) {
	if b.metrics != nil {
		b.metrics.RecordStorageOperation(op, "s3", err, time.Since(start))
	}
}

// Put stores an object under the given key.
func (b *S3Blob) Put(ctx context.Context, key string, data []byte, contentType string) error {
	start := time.Now()
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	b.record("put", err, start)
	if err != nil {
		return fmt.Errorf("%w: put object %s: %v", apperr.ErrStorage, key, err)
	}
	return nil
}

// Get reads an object's full content. A missing key maps to
// apperr.ErrNotFound.
func (b *S3Blob) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	b.record("get", err, start)
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: blob %s", apperr.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: get object %s: %v", apperr.ErrStorage, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read object %s: %v", apperr.ErrStorage, key, err)
	}
	return data, nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (b *S3Blob) Delete(ctx context.Context, key string) error {
	start := time.Now()
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	b.record("delete", err, start)
	if err != nil {
		return fmt.Errorf("%w: delete object %s: %v", apperr.ErrStorage, key, err)
	}
	return nil
}

// List returns every key under a prefix, following pagination.
func (b *S3Blob) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			b.record("list", err, start)
			return nil, fmt.Errorf("%w: list objects: %v", apperr.ErrStorage, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	b.record("list", nil, start)
	return keys, nil
}

// Ping verifies the bucket is reachable.
func (b *S3Blob) Ping(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	return err
}
