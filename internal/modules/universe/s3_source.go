package universe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// S3Config locates a summary object in an S3-compatible store.
type S3Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	Key            string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	manager.UploadAPIClient
}

// S3Source reads summaries from, and publishes them to, a single object.
type S3Source struct {
	client S3API
	bucket string
	key    string
	log    zerolog.Logger
}

// NewS3Client builds an S3 client. Static credentials are used when an
// access key is given; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", domain.ErrInvalidConfiguration)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normalizeEndpoint(cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// NewS3Source creates a source for the object cfg.Key in cfg.Bucket.
func NewS3Source(client S3API, cfg S3Config, log zerolog.Logger) *S3Source {
	return &S3Source{
		client: client,
		bucket: cfg.Bucket,
		key:    cfg.Key,
		log:    log.With().Str("source", "s3").Str("bucket", cfg.Bucket).Logger(),
	}
}

// Name implements Source
func (s *S3Source) Name() string {
	return "s3"
}

// Load implements Source
func (s *S3Source) Load(ctx context.Context) (*domain.Catalog, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3 object %s: %w", s.key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get s3 object %s: %w", s.key, err)
	}
	defer out.Body.Close()

	instruments, skipped, err := ParseSummaries(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 object %s: %w", s.key, err)
	}
	return buildCatalog(instruments, skipped, "s3://"+s.bucket+"/"+s.key, s.log)
}

// Upload writes instruments as a summary CSV to the source object.
func (s *S3Source) Upload(ctx context.Context, instruments []domain.Instrument) error {
	body, err := MarshalSummaries(instruments)
	if err != nil {
		return fmt.Errorf("failed to encode summaries: %w", err)
	}

	uploader := manager.NewUploader(s.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload summaries to %s: %w", s.key, err)
	}

	s.log.Info().Str("key", s.key).Int("instruments", len(instruments)).Msg("Published summaries")
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	type httpStatus interface {
		HTTPStatusCode() int
	}
	var hs httpStatus
	return errors.As(err, &hs) && hs.HTTPStatusCode() == 404
}

// normalizeEndpoint defaults scheme-less endpoints to https.
func normalizeEndpoint(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}
