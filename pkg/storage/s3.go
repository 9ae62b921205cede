package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sdejongh/robinhood/pkg/models"
)

// metaModTime is the object metadata key holding the source modification
// time, shared with rclone
const metaModTime = "mtime"

// ObjectAPI is the subset of the S3 client the backend calls
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Uploader streams a body of unknown length into an object
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Options configures an S3 backend
type S3Options struct {
	Region  string
	Profile string

	// ReadModTime issues a HeadObject per object while listing to recover
	// the modification time stored at upload
	ReadModTime bool

	// Client and Uploader replace the SDK clients built from the default
	// credential chain
	Client   ObjectAPI
	Uploader Uploader
}

// S3 stores files as objects under a bucket prefix. Directories are implicit.
type S3 struct {
	client      ObjectAPI
	uploader    Uploader
	bucket      string
	prefix      string
	readModTime bool
}

// NewS3 creates an S3 backend. Credentials come from the default AWS chain.
func NewS3(ctx context.Context, bucket, prefix string, opts S3Options) (*S3, error) {
	client, uploader := opts.Client, opts.Uploader
	if client == nil {
		var configOpts []func(*awsconfig.LoadOptions) error
		if opts.Region != "" {
			configOpts = append(configOpts, awsconfig.WithRegion(opts.Region))
		}
		if opts.Profile != "" {
			configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		s3Client := s3.NewFromConfig(cfg)
		client = s3Client
		if uploader == nil {
			uploader = manager.NewUploader(s3Client)
		}
	}
	if uploader == nil {
		return nil, errors.New("an uploader is required with a custom S3 client")
	}

	return &S3{
		client:      client,
		uploader:    uploader,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		readModTime: opts.ReadModTime,
	}, nil
}

func (b *S3) key(p string) string {
	return path.Join(b.prefix, strings.Trim(p, "/"))
}

// List pages through the bucket prefix. Keys ending in "/" are directory markers.
func (b *S3) List(ctx context.Context) iter.Seq2[models.RawEntry, error] {
	return func(yield func(models.RawEntry, error) bool) {
		listPrefix := b.prefix
		if listPrefix != "" {
			listPrefix += "/"
		}

		paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(b.bucket),
			Prefix: aws.String(listPrefix),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(models.RawEntry{}, fmt.Errorf("failed to list objects: %w", err))
				return
			}

			for _, obj := range page.Contents {
				if obj.Key == nil {
					continue
				}
				entry, err := b.entry(ctx, obj, listPrefix)
				if err != nil {
					yield(models.RawEntry{}, err)
					return
				}
				if entry.Path == "" {
					continue
				}
				if !yield(entry, nil) {
					return
				}
			}
		}
	}
}

func (b *S3) entry(ctx context.Context, obj types.Object, listPrefix string) (models.RawEntry, error) {
	key := aws.ToString(obj.Key)
	rel := strings.TrimPrefix(key, listPrefix)

	if strings.HasSuffix(rel, "/") {
		return models.RawEntry{Path: strings.TrimSuffix(rel, "/"), IsDir: true}, nil
	}

	entry := models.RawEntry{
		Path:    rel,
		Size:    aws.ToInt64(obj.Size),
		ModTime: aws.ToTime(obj.LastModified),
	}

	// Multipart ETags are not content digests
	if etag := strings.Trim(aws.ToString(obj.ETag), `"`); etag != "" && !strings.Contains(etag, "-") {
		entry.Checksum = models.NewChecksum(ChecksumMD5, etag)
	}

	if b.readModTime {
		head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return models.RawEntry{}, fmt.Errorf("failed to head object %s: %w", key, err)
		}
		if t, ok := parseModTime(head.Metadata[metaModTime]); ok {
			entry.ModTime = t
		}
	}
	return entry, nil
}

// parseModTime accepts RFC 3339 or rclone's fractional Unix seconds
func parseModTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC(), true
	}
	return time.Time{}, false
}

// Read opens an object for reading
func (b *S3) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return out.Body, nil
}

// Write uploads an object, storing modTime in its metadata
func (b *S3) Write(ctx context.Context, p string, reader io.Reader, size int64, modTime time.Time) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
		Body:   reader,
	}
	if !modTime.IsZero() {
		input.Metadata = map[string]string{metaModTime: modTime.UTC().Format(time.RFC3339Nano)}
	}

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// Delete removes an object. Directories only exist as key prefixes, so
// deleting one removes its marker, if any.
func (b *S3) Delete(ctx context.Context, p string, isDir bool) error {
	key := b.key(p)
	if isDir {
		key += "/"
	}
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// MkdirAll is a no-op: prefixes need no creation
func (b *S3) MkdirAll(ctx context.Context, p string) error {
	return nil
}

// Close releases resources (no-op for S3)
func (b *S3) Close() error {
	return nil
}

func (b *S3) String() string {
	return "s3://" + path.Join(b.bucket, b.prefix)
}
