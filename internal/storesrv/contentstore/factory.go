package contentstore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/storesrv/config"
	"github.com/vicinaehq/backend/internal/storesrv/metrics"
)

// New returns the backend selected by cfg.Provider, instrumented with m (which may be nil).
func New(ctx context.Context, cfg config.StorageConfig, m *metrics.Metrics) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Provider {
	case config.StorageProviderLocal, "":
		s, err = NewLocalStore(cfg.Local.BasePath, cfg.Local.BaseURL)
	case config.StorageProviderS3:
		s, err = NewS3Store(ctx, S3Options{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Endpoint:        cfg.S3.Endpoint,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
			URLExpiry:       cfg.S3.URLExpiry(),
		})
	default:
		return nil, ErrStorage.Msg("unknown storage provider: " + cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("provider", string(s.Provider())).Msg("content store ready")
	return Instrument(s, m), nil
}

type instrumented struct {
	Store
	m *metrics.Metrics
}

// Instrument records latency and failures of every operation of s.
func Instrument(s Store, m *metrics.Metrics) Store {
	if m == nil {
		return s
	}
	return &instrumented{Store: s, m: m}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	// a missing object is an answer, not a backend failure
	if errors.Is(err, ErrObjectNotFound) {
		err = nil
	}
	i.m.ObserveStorage(string(i.Store.Provider()), op, time.Since(start), err)
}

func (i *instrumented) Put(ctx context.Context, key string, data []byte, opts ...PutOption) error {
	start := time.Now()
	err := i.Store.Put(ctx, key, data, opts...)
	i.observe("put", start, err)
	return err
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := i.Store.Get(ctx, key)
	i.observe("get", start, err)
	return data, err
}

func (i *instrumented) URL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	start := time.Now()
	u, err := i.Store.URL(ctx, key, expiresIn)
	i.observe("url", start, err)
	return u, err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.Store.Delete(ctx, key)
	i.observe("delete", start, err)
	return err
}

func (i *instrumented) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := i.Store.Exists(ctx, key)
	i.observe("exists", start, err)
	return ok, err
}
