// Package contentstore is the artifact store of the extension registry. Two backends are
// provided, a local directory and an S3 compatible bucket, and they behave the same for
// every key: keys are normalized before use and can never address anything outside the
// store, missing objects are reported with ErrObjectNotFound, and every other failure
// wraps the backend error.
package contentstore

import (
	"context"
	"time"
)

type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderS3    Provider = "s3"
)

// DefaultURLExpiry is used when URL is called with a zero expiry.
const DefaultURLExpiry = time.Hour

type Store interface {
	// Put stores data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte, opts ...PutOption) error
	// Get returns the bytes stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// URL returns a URL clients can fetch the object from. Backends that sign URLs
	// honour expiresIn; the local backend returns a permanent URL.
	URL(ctx context.Context, key string, expiresIn time.Duration) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Provider() Provider
}

type putOptions struct {
	contentType string
}

type PutOption func(*putOptions)

// WithContentType sets the content type recorded with the object.
func WithContentType(ct string) PutOption {
	return func(o *putOptions) {
		o.contentType = ct
	}
}

func resolvePutOptions(key string, opts []PutOption) putOptions {
	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.contentType == "" {
		o.contentType = ContentTypeFor(key)
	}
	return o
}
