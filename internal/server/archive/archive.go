// Package archive keeps a copy of uploaded leaf images in S3 compatible storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config параметры подключения к бакету
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // пустой для AWS, иначе MinIO и т.п.
	AccessKey string
	SecretKey string
}

// objectPutter - подмножество *s3.Client, используемое архивом
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive сохраняет изображения через PutObject
type S3Archive struct {
	client objectPutter
	bucket string
}

// New creates an archive backed by the given bucket
func New(ctx context.Context, cfg Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Archive{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads data under key
func (a *S3Archive) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return nil
}

var extByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// ObjectKey строит ключ scans/<user>/<yyyy>/<mm>/<scanID><ext>
func ObjectKey(userID, scanID, filename, contentType string, createdAt time.Time) string {
	ext, ok := extByType[contentType]
	if !ok {
		ext = strings.ToLower(filepath.Ext(filename))
	}

	utc := createdAt.UTC()
	return path.Join("scans", userID, utc.Format("2006"), utc.Format("01"), scanID+ext)
}
