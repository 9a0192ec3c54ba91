package blob

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultTTL = time.Hour

type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Signer signs GET URLs for objects of the attachments bucket.
type S3Signer struct {
	presigner PresignAPI
	bucket    string
	ttl       time.Duration
}

func NewS3Signer(presigner PresignAPI, bucket string, ttl time.Duration) *S3Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &S3Signer{presigner: presigner, bucket: bucket, ttl: ttl}
}

func (s *S3Signer) SignedURL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
