package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appconfig "github.com/baechuer/rapidphoto/internal/config"
)

// ObjectKey mints a storage key for a new original, namespaced by user with a
// fresh random identifier. Keys never collide across calls, so issuing a
// grant needs no coordination with any database state.
func ObjectKey(userID uuid.UUID) string {
	return fmt.Sprintf("originals/%s/%s", userID, uuid.New())
}

// Grant is a time-limited signed URL for a single object operation.
type Grant struct {
	URL       string
	S3Key     string
	ExpiresAt time.Time
}

// S3Client wraps the AWS S3 client for MinIO/R2 or real S3.
type S3Client struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	cfg       *appconfig.Config
	log       zerolog.Logger
}

// NewS3Client creates a new S3 client against the configured endpoint.
func NewS3Client(cfg *appconfig.Config, log zerolog.Logger) (*S3Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               cfg.S3Endpoint,
			HostnameImmutable: true,
		}, nil
	})

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.S3Region),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return &S3Client{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		cfg:       cfg,
		log:       log,
	}, nil
}

// PresignPut issues a write grant scoped to exactly one key and content type.
// Failures are transient: the caller retries the whole initiate flow and a
// new key is minted, so retries cannot collide.
func (c *S3Client) PresignPut(ctx context.Context, objectKey, contentType string) (Grant, error) {
	req, err := c.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(c.cfg.PresignTTL))
	if err != nil {
		return Grant{}, fmt.Errorf("failed to presign PUT: %w", err)
	}
	return Grant{
		URL:       req.URL,
		S3Key:     objectKey,
		ExpiresAt: time.Now().UTC().Add(c.cfg.PresignTTL),
	}, nil
}

// PresignGet issues a read grant for a stored object.
func (c *S3Client) PresignGet(ctx context.Context, objectKey string) (Grant, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(c.cfg.DownloadURLTTL))
	if err != nil {
		return Grant{}, fmt.Errorf("failed to presign GET: %w", err)
	}
	return Grant{
		URL:       req.URL,
		S3Key:     objectKey,
		ExpiresAt: time.Now().UTC().Add(c.cfg.DownloadURLTTL),
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist. MinIO convenience for
// local development; on real S3 the bucket is provisioned out of band.
func (c *S3Client) EnsureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}
	c.log.Info().Str("bucket", c.bucket).Msg("creating bucket")
	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
	}
	return nil
}
