package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignedURLExpiry is the default lifetime of presigned media URLs
const PresignedURLExpiry = 1 * time.Hour

// PresignDownloadURL returns a time-limited public URL for a private media
// object. The search_media tool uses this so replies can reference objects
// in a private bucket.
func PresignDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !IsEnabled() {
		return "", fmt.Errorf("S3 storage not enabled")
	}
	if expiry == 0 {
		expiry = PresignedURLExpiry
	}

	presigner := s3.NewPresignClient(s3Client)
	result, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", err
	}
	return result.URL, nil
}

// PresignUploadURL returns a time-limited URL that lets a dashboard upload a
// media object directly to the bucket, bypassing the API server.
func PresignUploadURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if !IsEnabled() {
		return "", fmt.Errorf("S3 storage not enabled")
	}
	if expiry == 0 {
		expiry = PresignedURLExpiry
	}

	presigner := s3.NewPresignClient(s3Client)
	result, err := presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", err
	}
	return result.URL, nil
}
