// Package s3 implements an image source backed by an object in Amazon S3
// or any S3-compatible store.
//
// The image is never downloaded as a whole: every ReadAt issues one ranged
// GetObject request, so a session reading a directory record touches only
// the sectors it needs. Put a cache.CachedSource in front of it to avoid
// re-fetching hot sectors (volume descriptors, path tables, directories).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittoiso/pkg/source"
)

// Client is the subset of the S3 API used by S3Source.
// *s3.Client satisfies it.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Source reads a disc image stored as a single S3 object.
//
// Thread Safety:
// Safe for concurrent use; each ReadAt is an independent HTTP request.
type S3Source struct {
	client  Client
	bucket  string
	key     string
	size    int64
	metrics Metrics
	closed  atomic.Bool
}

// S3SourceConfig contains configuration for an S3 image source.
type S3SourceConfig struct {
	// Client is the configured S3 client
	Client Client

	// Bucket holding the image object
	Bucket string

	// Key of the image object
	Key string

	// Size skips the HeadObject request when the length is already known
	Size int64

	// Metrics is optional; nil disables collection
	Metrics Metrics
}

// New creates an S3 image source.
//
// Unless cfg.Size is set, New issues a HeadObject request to learn the
// image length, which also verifies that the object exists.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 source configuration
//
// Returns:
//   - *S3Source: Ready source
//   - error: source.ErrNotFound when the object is missing, or a request error
func New(ctx context.Context, cfg S3SourceConfig) (*S3Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("object key is required")
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	s := &S3Source{
		client:  cfg.Client,
		bucket:  cfg.Bucket,
		key:     cfg.Key,
		size:    cfg.Size,
		metrics: metrics,
	}

	if s.size == 0 {
		size, err := s.headSize(ctx)
		if err != nil {
			return nil, err
		}
		s.size = size
	}

	return s, nil
}

func (s *S3Source) headSize(ctx context.Context) (size int64, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("HeadObject", time.Since(start), err)
	}()

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return 0, fmt.Errorf("image s3://%s/%s: %w", s.bucket, s.key, source.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to head image object: %w", err)
	}

	if result.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for s3://%s/%s", s.bucket, s.key)
	}

	return *result.ContentLength, nil
}

// ReadAt reads len(p) bytes at off with a single ranged GetObject.
//
// Returns io.EOF when off is at or beyond the end of the object, or when
// the object ends before p is filled.
func (s *S3Source) ReadAt(ctx context.Context, p []byte, off int64) (n int, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("GetObject", time.Since(start), ignoreEOF(err))
		if n > 0 {
			s.metrics.RecordBytes("read", int64(n))
		}
	}()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.closed.Load() {
		return 0, source.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= s.size {
		return 0, io.EOF
	}

	want := int64(len(p))
	if off+want > s.size {
		want = s.size - off
	}

	// S3 ranges are inclusive
	rangeStr := fmt.Sprintf("bytes=%d-%d", off, off+want-1)

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(rangeStr),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return 0, fmt.Errorf("image s3://%s/%s: %w", s.bucket, s.key, source.ErrNotFound)
		}
		if strings.Contains(err.Error(), "InvalidRange") {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("failed to read image range %s: %w", rangeStr, err)
	}
	defer func() { _ = result.Body.Close() }()

	n, err = io.ReadFull(result.Body, p[:want])
	if err == io.ErrUnexpectedEOF {
		return n, io.EOF
	}
	if err != nil {
		return n, err
	}
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

func (s *S3Source) Size() int64 {
	return s.size
}

func (s *S3Source) Name() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

// Close marks the source closed. The shared client is not owned by the source.
func (s *S3Source) Close() error {
	s.closed.Store(true)
	return nil
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ClientConfig describes how to build an S3 client.
type ClientConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	MaxRetries      int
}

// NewClient builds an *s3.Client from cfg.
//
// A custom endpoint (MinIO, Localstack, ...) implies path-style addressing.
// Without static credentials the default AWS credential chain is used.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// NewOpener returns an opener that hands out S3Source handles sharing client.
// The object length is looked up once and reused by later handles.
func NewOpener(client Client, bucket, key string, metrics Metrics) source.Opener {
	var size atomic.Int64
	return func(ctx context.Context) (source.Source, error) {
		src, err := New(ctx, S3SourceConfig{
			Client:  client,
			Bucket:  bucket,
			Key:     key,
			Size:    size.Load(),
			Metrics: metrics,
		})
		if err != nil {
			return nil, err
		}
		size.Store(src.Size())
		return src, nil
	}
}
