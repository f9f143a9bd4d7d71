package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

// S3Store talks to AWS S3 or an S3-compatible endpoint such as MinIO.
type S3Store struct {
	publicURLs
	client *s3.Client
}

var _ ports.ObjectStorage = (*S3Store)(nil)

type S3Options struct {
	Region        string
	Endpoint      string
	PathStyle     bool
	PublicBaseURL string
	// HTTPClient replaces the SDK transport; tests point it at a fake.
	HTTPClient *http.Client
	// Credentials overrides the default credential chain.
	Credentials aws.CredentialsProvider
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.Credentials != nil {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(opts.Credentials))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errs.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		if opts.HTTPClient != nil {
			o.HTTPClient = opts.HTTPClient
		}
	})
	return &S3Store{publicURLs: publicURLs{base: opts.PublicBaseURL}, client: client}, nil
}

func (s *S3Store) Upload(ctx context.Context, bucket string, key string, r io.Reader, contentType string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	// A seekable body lets the SDK sign the payload without chunked encoding.
	body, err := io.ReadAll(r)
	if err != nil {
		return "", errs.Wrap(err, "read upload body")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(k),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", errs.Wrapf(err, "s3 put %s/%s", bucket, k)
	}
	return key, nil
}

func (s *S3Store) Open(ctx context.Context, bucket string, key string) (io.ReadCloser, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		if isS3NotFound(err) {
			return nil, "", ports.ErrObjectNotFound
		}
		return nil, "", errs.Wrapf(err, "s3 get %s/%s", bucket, key)
	}
	return out.Body, aws.ToString(out.ContentType), nil
}

func (s *S3Store) Delete(ctx context.Context, bucket string, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
		if isS3NotFound(err) {
			return ports.ErrObjectNotFound
		}
		return errs.Wrapf(err, "s3 delete %s/%s", bucket, key)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
