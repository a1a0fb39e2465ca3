package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Presigner signs object store URLs for chat attachments. Signing is local,
// the bucket is only reached by the client using the URL.
type S3Presigner struct {
	client *s3.PresignClient
	bucket string
}

func NewS3Presigner(client *s3.Client, bucket string) *S3Presigner {
	return &S3Presigner{client: s3.NewPresignClient(client), bucket: bucket}
}

func (p *S3Presigner) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return req.URL, nil
}

func (p *S3Presigner) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}
