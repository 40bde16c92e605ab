// Package photostore uploads memory photos to object storage and removes
// them again. Deleting an object that is already gone succeeds.
package photostore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Object is an uploaded photo. Key doubles as the deletion handle.
type Object struct {
	URL string
	Key string
}

// Store is the photo storage collaborator.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
}

// Options configures the S3 and MinIO backends.
type Options struct {
	Driver          string
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	CustomDomain    string
	UseSSL          bool
}

// New picks the backend named by opts.Driver ("s3", "minio" or "memory").
func New(opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "s3":
		return NewS3(opts)
	case "minio":
		return NewMinio(opts)
	case "memory":
		return NewMemory("memory://" + opts.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown photo storage driver %q", opts.Driver)
	}
}

func (o Options) validate() error {
	if strings.TrimSpace(o.Bucket) == "" || strings.TrimSpace(o.AccessKeyID) == "" || strings.TrimSpace(o.SecretAccessKey) == "" {
		return fmt.Errorf("incomplete photo storage config: bucket/access_key_id/secret_access_key are required")
	}
	return nil
}

// endpointURL normalizes the configured endpoint, defaulting to AWS.
func (o Options) endpointURL() (*url.URL, error) {
	endpoint := strings.TrimSpace(o.Endpoint)
	if endpoint == "" {
		region := strings.TrimSpace(o.Region)
		if region == "" {
			region = "us-east-1"
		}
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", region)
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if o.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	parsed, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid photo storage endpoint: %s", endpoint)
	}
	return parsed, nil
}

// publicURL is the custom domain URL when configured, else the path-style
// bucket URL.
func publicURL(customDomain string, endpoint *url.URL, bucket, key string) string {
	escaped := escapeKey(key)
	if d := strings.TrimSuffix(strings.TrimSpace(customDomain), "/"); d != "" {
		if !strings.HasPrefix(d, "http://") && !strings.HasPrefix(d, "https://") {
			d = "https://" + d
		}
		return d + "/" + escaped
	}
	return endpoint.Scheme + "://" + endpoint.Host + "/" + bucket + "/" + escaped
}

func escapeKey(key string) string {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
