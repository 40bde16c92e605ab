package photostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3 stores photos in an S3-compatible bucket.
type S3 struct {
	client       *s3.Client
	bucket       string
	endpoint     *url.URL
	customDomain string
}

func NewS3(opts Options) (*S3, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	endpoint, err := opts.endpointURL()
	if err != nil {
		return nil, err
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(endpoint.String()),
		UsePathStyle: strings.TrimSpace(opts.Endpoint) != "",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(opts.AccessKeyID),
			strings.TrimSpace(opts.SecretAccessKey),
			"",
		)),
	})
	return &S3{
		client:       client,
		bucket:       strings.TrimSpace(opts.Bucket),
		endpoint:     endpoint,
		customDomain: opts.CustomDomain,
	}, nil
}

func (s *S3) Upload(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("s3 put %s: %w", key, err)
	}
	return Object{URL: publicURL(s.customDomain, s.endpoint, s.bucket, key), Key: key}, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var missing *types.NoSuchKey
	if err != nil && !errors.As(err, &missing) {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}
