package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// KeyPrefix namespaces every key, e.g. per environment.
	KeyPrefix    string
	StorageClass string
	// LinkTTL bounds how long a download link stays valid.
	LinkTTL time.Duration
}

// ArchivedObject describes one stored report.
type ArchivedObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ObjectStore keeps counter reports in a private S3-compatible bucket.
// Reports carry audit data, so they are never public; callers hand out
// short-lived presigned links instead.
type ObjectStore struct {
	client       *s3.Client
	presign      *s3.PresignClient
	bucket       string
	prefix       string
	storageClass types.StorageClass
	linkTTL      time.Duration
}

func NewObjectStore(ctx context.Context, cfg Config) (*ObjectStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(cfg.AccessKeyID),
			strings.TrimSpace(cfg.SecretAccessKey),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load object store config: %w", err)
	}

	// R2 and most self-hosted S3 servers need path-style addressing.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	linkTTL := cfg.LinkTTL
	if linkTTL <= 0 {
		linkTTL = 15 * time.Minute
	}

	return &ObjectStore{
		client:       client,
		presign:      s3.NewPresignClient(client),
		bucket:       bucket,
		prefix:       strings.Trim(strings.TrimSpace(cfg.KeyPrefix), "/"),
		storageClass: types.StorageClass(strings.ToUpper(strings.TrimSpace(cfg.StorageClass))),
		linkTTL:      linkTTL,
	}, nil
}

func (s *ObjectStore) fullKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *ObjectStore) relativeKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

// SaveReport uploads a PDF under key. Metadata is stored as x-amz-meta-*
// headers next to the object.
func (s *ObjectStore) SaveReport(ctx context.Context, key string, pdf []byte, metadata map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(s.fullKey(key)),
		Body:               bytes.NewReader(pdf),
		ContentType:        aws.String("application/pdf"),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", path.Base(key))),
		CacheControl:       aws.String("private, no-store"),
		Metadata:           metadata,
	}
	if s.storageClass != "" {
		input.StorageClass = s.storageClass
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// ListReports returns the reports stored under prefix.
func (s *ObjectStore) ListReports(ctx context.Context, prefix string) ([]ArchivedObject, error) {
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.fullKey(prefix)),
	})

	var out []ArchivedObject
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, item := range page.Contents {
			obj := ArchivedObject{Key: s.relativeKey(aws.ToString(item.Key)), Size: aws.ToInt64(item.Size)}
			if item.LastModified != nil {
				obj.LastModified = *item.LastModified
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

// DownloadURL signs a GET link for key that expires after the configured TTL.
func (s *ObjectStore) DownloadURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	}, s3.WithPresignExpires(s.linkTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}
