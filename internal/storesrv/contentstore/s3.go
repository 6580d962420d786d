package contentstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Presigner signs GetObject requests.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Options struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	ForcePathStyle  bool
	URLExpiry       time.Duration
}

// S3Store keeps objects in a single bucket of an S3 compatible service.
type S3Store struct {
	client    S3API
	presigner S3Presigner
	bucket    string
	urlExpiry time.Duration
}

// defaultS3Region is used when neither the config nor the AWS environment names a region.
const defaultS3Region = "us-east-1"

// NewS3Store builds an S3 client from the default AWS configuration chain: environment,
// shared config and credentials files, web identity and instance roles. Region and
// keys set in opts take precedence over that chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, ErrStorage.Msg("s3 bucket is required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, ErrStorage.MsgErr("unable to load aws configuration", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = defaultS3Region
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.ForcePathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewS3StoreWithClient(client, s3.NewPresignClient(client), opts.Bucket, opts.URLExpiry), nil
}

// NewS3StoreWithClient wires an existing client. A zero urlExpiry means DefaultURLExpiry.
func NewS3StoreWithClient(client S3API, presigner S3Presigner, bucket string, urlExpiry time.Duration) *S3Store {
	if urlExpiry <= 0 {
		urlExpiry = DefaultURLExpiry
	}
	return &S3Store{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		urlExpiry: urlExpiry,
	}
}

func (s *S3Store) Provider() Provider {
	return ProviderS3
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, opts ...PutOption) error {
	k, err := normalize(key)
	if err != nil {
		return err
	}
	o := resolvePutOptions(k, opts)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(k),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(o.contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("key", k).Msg("s3 put failed")
		return ErrPutFailed.Msg("failed to store object at key: " + k).Err(err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := normalize(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound.Msg("file not found: " + k).Err(err)
		}
		return nil, ErrGetFailed.Msg("failed to read object at key: " + k).Err(err)
	}
	if out.Body == nil {
		return nil, ErrGetFailed.Msg("empty response body for key: " + k)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, ErrGetFailed.Msg("failed to read object at key: " + k).Err(err)
	}
	return data, nil
}

func (s *S3Store) URL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	k, err := normalize(key)
	if err != nil {
		return "", err
	}
	if expiresIn <= 0 {
		expiresIn = s.urlExpiry
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", ErrURLFailed.Msg("failed to generate url for key: " + k).Err(err)
	}
	return req.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	k, err := normalize(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil && !isS3NotFound(err) {
		return ErrDeleteFailed.Msg("failed to delete object at key: " + k).Err(err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	k, err := normalize(key)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, ErrExistsFailed.Msg("failed to check object at key: " + k).Err(err)
	}
	return true, nil
}
