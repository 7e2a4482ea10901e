// Package artifacts publishes pipeline outputs to an S3-compatible bucket.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"telematics/config"
	"telematics/pkg/logger"
)

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Publisher struct {
	client PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
	log    logger.ILogger
}

func NewPublisher(client PutObjectAPI, bucket, prefix string, log logger.ILogger) *Publisher {
	return &Publisher{client: client, bucket: bucket, prefix: prefix, now: time.Now, log: log}
}

// FromConfig builds a publisher from the S3_* settings. It returns nil
// when no bucket is configured.
func FromConfig(ctx context.Context, cfg config.Config, log logger.ILogger) (*Publisher, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewPublisher(client, cfg.S3Bucket, cfg.S3KeyPrefix, log), nil
}

// Key is the object key for a local file published on day.
func (p *Publisher) Key(day time.Time, file string) string {
	return path.Join(p.prefix, day.Format("2006-01-02"), filepath.Base(file))
}

// Publish uploads every file and returns the written keys. A nil
// publisher does nothing.
func (p *Publisher) Publish(ctx context.Context, files []string) ([]string, error) {
	if p == nil {
		return nil, nil
	}
	day := p.now().UTC()
	keys := make([]string, 0, len(files))
	for _, file := range files {
		key := p.Key(day, file)
		if err := p.upload(ctx, file, key); err != nil {
			p.log.Error("s3 upload failed", logger.String("file", file), logger.Error(err))
			return keys, fmt.Errorf("upload %s: %w", file, err)
		}
		p.log.Info("artifact published", logger.String("bucket", p.bucket), logger.String("key", key))
		keys = append(keys, key)
	}
	return keys, nil
}

func (p *Publisher) upload(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	return err
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
