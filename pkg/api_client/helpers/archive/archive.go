// Package archive stores finished batch results in S3 and hands out
// short-lived download URLs for them.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bulkverify/credits-portal/pkg/config"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type getPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Archive is safe to use as a nil pointer: a nil archive is disabled and
// Enabled reports false.
type S3Archive struct {
	objects objectPutter
	presign getPresigner
	bucket  string
	prefix  string
	ttl     time.Duration
}

// New returns nil when no bucket is configured.
func New(ctx context.Context, cfg config.ArchiveConfig) (*S3Archive, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Archive(client, s3.NewPresignClient(client), cfg), nil
}

func newS3Archive(objects objectPutter, presign getPresigner, cfg config.ArchiveConfig) *S3Archive {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Archive{
		objects: objects,
		presign: presign,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		ttl:     ttl,
	}
}

func (a *S3Archive) Enabled() bool {
	return a != nil
}

// ObjectKey returns the object key used for a batch result.
func (a *S3Archive) ObjectKey(vendor, batchID string) string {
	return path.Join(a.prefix, vendor, batchID+".csv")
}

// Put uploads data under key.
func (a *S3Archive) Put(ctx context.Context, key string, data []byte) error {
	if a == nil {
		return errors.New("result archive is disabled")
	}
	_, err := a.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String("text/csv"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a GET URL for key valid for the configured TTL.
func (a *S3Archive) PresignGet(ctx context.Context, key string) (string, error) {
	if a == nil {
		return "", errors.New("result archive is disabled")
	}
	req, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = a.ttl })
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}
