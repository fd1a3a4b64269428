package output

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/recipescrape/recipescrape/internal/config"
	"github.com/recipescrape/recipescrape/pkg/errors"
	"github.com/recipescrape/recipescrape/pkg/utils"
)

// PutObjectAPI is the part of the S3 client the sink needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads outputs as objects in a bucket.
type S3Sink struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *utils.StructuredLogger
}

// NewS3Sink builds an S3 client from cfg and returns a sink for cfg.Bucket.
func NewS3Sink(ctx context.Context, cfg config.S3Config, logger *utils.StructuredLogger) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "bucket name cannot be empty").
			WithComponent("output")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, errors.NewError(errors.ErrCodeCredentialsMissing, "both access_key_id and secret_access_key are required").
				WithComponent("output")
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "failed to load AWS config").
			WithComponent("output")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return NewS3SinkWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3SinkWithClient returns a sink that uploads through client.
func NewS3SinkWithClient(client PutObjectAPI, bucket, prefix string, logger *utils.StructuredLogger) *S3Sink {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.WithComponent("output"),
	}
}

// Key returns the object key for an output name.
func (s *S3Sink) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Sink) Write(ctx context.Context, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}

	key := s.Key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return writeError(err, name, "s3://"+s.bucket+"/"+key)
	}

	s.logger.Debug("Output uploaded", map[string]interface{}{
		"bucket": s.bucket,
		"key":    key,
		"bytes":  len(data),
	})
	return nil
}
