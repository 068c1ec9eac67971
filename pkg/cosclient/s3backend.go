package cosclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vcpagent/cosvault/pkg/config"
	"github.com/vcpagent/cosvault/pkg/dto"
)

// Backend implements Client against the COS S3-compatible endpoint for
// object operations and the CI endpoint for virus scanning.
type Backend struct {
	cfg config.Config
	s3c *s3.Client
	ci  *ciClient
	log *slog.Logger
}

// New creates a Backend from the configuration.
// By default the logger is set to discard.
func New(cfg config.Config) (*Backend, error) {
	awsCfg, err := awsConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Backend{
		cfg: cfg,
		s3c: s3.NewFromConfig(awsCfg),
		ci:  newCIClient(cfg.Bucket, cfg.Region, cfg.SecretID, cfg.SecretKey, cfg.CallbackBaseURL),
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// SetLogger sets the logger
func (b *Backend) SetLogger(log *slog.Logger) {
	b.log = log
}

// awsConfig returns an aws.Config pointed at the COS endpoint with
// static credentials. COS addresses buckets in the hostname, so the
// resolved hostname is immutable.
func awsConfig(cfg config.Config) (aws.Config, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://cos.%s.myqcloud.com", cfg.Region)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(
		context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.SecretID, cfg.SecretKey, "")),
	)
	if err != nil {
		return awsCfg, fmt.Errorf("error loading default config: %w", err)
	}
	awsCfg.EndpointResolver = aws.EndpointResolverFunc(func(service, region string) (aws.Endpoint, error) {
		return aws.Endpoint{
			PartitionID:       "aws",
			URL:               endpoint,
			SigningRegion:     cfg.Region,
			HostnameImmutable: true,
		}, nil
	})
	return awsCfg, nil
}

// Put writes body as the object at key.
func (b *Backend) Put(ctx context.Context, key string, body io.Reader, contentType string, size int64) error {
	input := &s3.PutObjectInput{
		Bucket:        &b.cfg.Bucket,
		Key:           &key,
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}
	if _, err := b.s3c.PutObject(ctx, input); err != nil {
		return wrapRemote("Put", err)
	}
	b.log.Debug("Put completed", slog.String("key", key), slog.Int64("size", size))
	return nil
}

// UploadFile uploads the local file at localPath to key.
func (b *Backend) UploadFile(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("UploadFile: error opening %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("UploadFile: error of Stat: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        &b.cfg.Bucket,
		Key:           &key,
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	}
	if _, err := b.s3c.PutObject(ctx, input); err != nil {
		return wrapRemote("UploadFile", err)
	}
	b.log.Debug("UploadFile completed",
		slog.String("key", key),
		slog.String("localPath", localPath),
		slog.Int64("size", info.Size()))
	return nil
}

// Download fetches key into destPath and returns the byte count.
func (b *Backend) Download(ctx context.Context, key, destPath string) (int64, error) {
	out, err := b.s3c.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.cfg.Bucket,
		Key:    &key,
	})
	if err != nil {
		return 0, wrapRemote("Download", err)
	}
	defer out.Body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("Download: error creating %s: %w", destPath, err)
	}
	defer f.Close()

	n, err := io.Copy(f, out.Body)
	if err != nil {
		return n, fmt.Errorf("Download: error writing %s: %w", destPath, err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("Download: error closing %s: %w", destPath, err)
	}
	b.log.Debug("Download completed", slog.String("key", key), slog.Int64("size", n))
	return n, nil
}

// Copy duplicates sourceKey to destKey within the bucket.
func (b *Backend) Copy(ctx context.Context, destKey, sourceKey string) error {
	source := url.PathEscape(b.cfg.Bucket + "/" + sourceKey)
	input := &s3.CopyObjectInput{
		Bucket:     &b.cfg.Bucket,
		Key:        &destKey,
		CopySource: &source,
	}
	if _, err := b.s3c.CopyObject(ctx, input); err != nil {
		return wrapRemote("Copy", err)
	}
	b.log.Debug("Copy completed",
		slog.String("sourceKey", sourceKey),
		slog.String("destKey", destKey))
	return nil
}

// Delete removes the object at key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	input := &s3.DeleteObjectInput{
		Bucket: &b.cfg.Bucket,
		Key:    &key,
	}
	if _, err := b.s3c.DeleteObject(ctx, input); err != nil {
		return wrapRemote("Delete", err)
	}
	b.log.Debug("Delete completed", slog.String("key", key))
	return nil
}

// ListPage fetches one page of keys under prefix, continuing from
// marker. The caller drives pagination with the returned NextMarker
// until Truncated is false.
func (b *Backend) ListPage(ctx context.Context, prefix, marker string, maxKeys int32) (*ListPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  &b.cfg.Bucket,
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(maxKeys),
	}
	if marker != "" {
		input.ContinuationToken = aws.String(marker)
	}
	out, err := b.s3c.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, wrapRemote("ListPage", err)
	}

	page := &ListPage{
		Truncated:  aws.ToBool(out.IsTruncated),
		NextMarker: aws.ToString(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		entry := ObjectEntry{
			Key:  aws.ToString(obj.Key),
			Size: aws.ToInt64(obj.Size),
			ETag: aws.ToString(obj.ETag),
		}
		if obj.LastModified != nil {
			entry.LastModified = *obj.LastModified
		}
		page.Entries = append(page.Entries, entry)
	}
	return page, nil
}

// ScanSubmit creates a virus-scan job for a stored key or external URL.
func (b *Backend) ScanSubmit(ctx context.Context, key, url string) (*dto.ScanJob, error) {
	job, err := b.ci.submit(ctx, key, url)
	if err != nil {
		return nil, err
	}
	b.log.Debug("ScanSubmit completed",
		slog.String("jobID", job.JobID),
		slog.String("state", job.State))
	return job, nil
}

// ScanQuery returns the current remote state of a scan job.
func (b *Backend) ScanQuery(ctx context.Context, jobID string) (*dto.ScanJob, error) {
	job, err := b.ci.query(ctx, jobID)
	if err != nil {
		return nil, err
	}
	b.log.Debug("ScanQuery completed",
		slog.String("jobID", job.JobID),
		slog.String("state", job.State))
	return job, nil
}

var _ Client = (*Backend)(nil)
