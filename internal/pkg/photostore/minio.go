package photostore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Minio stores photos on a MinIO server.
type Minio struct {
	client       *minio.Client
	bucket       string
	endpoint     *url.URL
	customDomain string
}

func NewMinio(opts Options) (*Minio, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, fmt.Errorf("minio photo storage requires an endpoint")
	}
	endpoint, err := opts.endpointURL()
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(opts.AccessKeyID), strings.TrimSpace(opts.SecretAccessKey), ""),
		Secure: endpoint.Scheme == "https",
		Region: strings.TrimSpace(opts.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Minio{
		client:       client,
		bucket:       strings.TrimSpace(opts.Bucket),
		endpoint:     endpoint,
		customDomain: opts.CustomDomain,
	}, nil
}

func (m *Minio) Upload(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("minio put %s: %w", key, err)
	}
	return Object{URL: publicURL(m.customDomain, m.endpoint, m.bucket, key), Key: key}, nil
}

func (m *Minio) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("minio delete %s: %w", key, err)
	}
	return nil
}
