package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/fitsync/internal/pkg/config"
)

// ErrDisabled is returned by NewS3Archiver when ARCHIVE_ENABLED is off.
var ErrDisabled = errors.New("webhook archive is disabled")

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes verified raw webhook payloads to an S3-compatible bucket.
type S3Archiver struct {
	client objectPutter
	bucket string
}

// NewS3Archiver builds the S3 client from static credentials. A custom endpoint
// switches to path-style addressing for S3-compatible providers.
func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[Archive] Archiving webhook payloads to bucket: %s", cfg.BucketName)
	return &S3Archiver{client: client, bucket: cfg.BucketName}, nil
}

// ObjectKey returns webhooks/YYYY/MM/DD/<event id>.json using the UTC receive date.
func ObjectKey(eventID string, received time.Time) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(eventID)
	return fmt.Sprintf("webhooks/%s/%s.json", received.UTC().Format("2006/01/02"), safe)
}

func (a *S3Archiver) ArchiveWebhook(ctx context.Context, eventID string, received time.Time, payload []byte) error {
	key := ObjectKey(eventID, received)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
		Metadata: map[string]string{
			"event-id":    eventID,
			"received-at": received.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	log.Debugf("[Archive] Stored s3://%s/%s (%d bytes)", a.bucket, key, len(payload))
	return nil
}
