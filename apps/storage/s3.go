package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/google/uuid"
)

var (
	s3Client *s3.Client
	bucket   string
	enabled  bool
)

// Initialize sets up the S3 client for the media library. When S3 is disabled
// or misconfigured the rest of the system keeps working with plain URLs only.
func Initialize() error {
	enabled = settings.Get("S3.ENABLED").Bool()
	if !enabled {
		log.Notice("S3 media storage is disabled")
		return nil
	}

	bucket = settings.Get("S3.BUCKET").String()
	endpoint := settings.Get("S3.ENDPOINT").String()
	region := settings.Get("S3.REGION").String()
	accessKey := settings.Get("S3.ACCESS_KEY").String()
	secretKey := settings.Get("S3.SECRET_KEY").String()

	if bucket == "" || endpoint == "" || accessKey == "" || secretKey == "" {
		enabled = false
		return fmt.Errorf("S3 configuration incomplete")
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	cfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		EndpointResolverWithOptions: aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					SigningRegion:     region,
					HostnameImmutable: true,
				}, nil
			},
		),
	}

	// Path style is required for S3-compatible providers
	s3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	log.Notice("S3 media storage initialized: bucket=%s, endpoint=%s", bucket, endpoint)
	return nil
}

// IsEnabled reports whether the media library has a working object store
func IsEnabled() bool {
	return enabled && s3Client != nil
}

// GenerateMediaKey builds a unique object key for an agent's media item
func GenerateMediaKey(agentID uint, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("media/%d/%s%s", agentID, uuid.New().String(), ext)
}

// Upload stores a media object
func Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if !IsEnabled() {
		return fmt.Errorf("S3 storage not enabled")
	}

	_, err := s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}

// UploadReader stores a media object streamed from a reader
func UploadReader(ctx context.Context, key string, reader io.Reader, contentType string, contentLength int64) error {
	if !IsEnabled() {
		return fmt.Errorf("S3 storage not enabled")
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	}
	if contentLength > 0 {
		input.ContentLength = aws.Int64(contentLength)
	}

	_, err := s3Client.PutObject(ctx, input)
	return err
}

// Download fetches a media object into memory
func Download(ctx context.Context, key string) ([]byte, string, error) {
	if !IsEnabled() {
		return nil, "", fmt.Errorf("S3 storage not enabled")
	}

	result, err := s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", err
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := ""
	if result.ContentType != nil {
		contentType = *result.ContentType
	}
	return data, contentType, nil
}

// GetReader returns a streaming reader for a media object
func GetReader(ctx context.Context, key string) (io.ReadCloser, string, int64, error) {
	if !IsEnabled() {
		return nil, "", 0, fmt.Errorf("S3 storage not enabled")
	}

	result, err := s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", 0, err
	}

	contentType := ""
	if result.ContentType != nil {
		contentType = *result.ContentType
	}
	contentLength := int64(0)
	if result.ContentLength != nil {
		contentLength = *result.ContentLength
	}
	return result.Body, contentType, contentLength, nil
}

// Delete removes a media object
func Delete(ctx context.Context, key string) error {
	if !IsEnabled() {
		return fmt.Errorf("S3 storage not enabled")
	}

	_, err := s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}

// ObjectInfo is object metadata from a HEAD request
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Head returns metadata for a media object without fetching its body
func Head(ctx context.Context, key string) (*ObjectInfo, error) {
	if !IsEnabled() {
		return nil, fmt.Errorf("S3 storage not enabled")
	}

	result, err := s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}

	info := &ObjectInfo{Key: key}
	if result.ContentLength != nil {
		info.Size = *result.ContentLength
	}
	if result.ContentType != nil {
		info.ContentType = *result.ContentType
	}
	if result.LastModified != nil {
		info.LastModified = *result.LastModified
	}
	return info, nil
}

// DownloadRange fetches a byte range of a media object. Used for video
// seeking through the media proxy. Returns the body, content type, range
// length and the total object size.
func DownloadRange(ctx context.Context, key string, rangeHeader string) (io.ReadCloser, string, int64, int64, error) {
	if !IsEnabled() {
		return nil, "", 0, 0, fmt.Errorf("S3 storage not enabled")
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if rangeHeader != "" {
		input.Range = aws.String(rangeHeader)
	}

	result, err := s3Client.GetObject(ctx, input)
	if err != nil {
		return nil, "", 0, 0, err
	}

	contentType := ""
	if result.ContentType != nil {
		contentType = *result.ContentType
	}
	contentLength := int64(0)
	if result.ContentLength != nil {
		contentLength = *result.ContentLength
	}

	// ContentRange carries the total size: "bytes 0-999/5000"
	totalSize := contentLength
	if result.ContentRange != nil {
		parts := strings.Split(*result.ContentRange, "/")
		if len(parts) == 2 {
			if size, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				totalSize = size
			}
		}
	}

	return result.Body, contentType, contentLength, totalSize, nil
}
