package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/wippyai/celfmt-ui/errors"
)

// S3Config configures the object store client for s3:// locations.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Fetcher reads modules from an S3 compatible object store.
type S3Fetcher struct {
	client *minio.Client
}

// NewS3Fetcher creates a fetcher for s3://bucket/key locations.
func NewS3Fetcher(cfg S3Config) (*S3Fetcher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.InvalidInput(errors.PhaseConfig, "s3 endpoint is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	var creds *credentials.Credentials
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access != "" || secret != "" {
		creds = credentials.NewStaticV4(access, secret, "")
	} else {
		creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "init s3 client")
	}
	return &S3Fetcher{client: client}, nil
}

func (s *S3Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Transport(location, err)
	}

	// GetObject is lazy; Stat issues the request so missing objects fail here.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, errors.NotFound(errors.PhaseFetch, "object", location)
		}
		return nil, errors.Transport(location, err)
	}
	return obj, nil
}

// ParseS3Location splits s3://bucket/key into bucket and key.
func ParseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", errors.InvalidInput(errors.PhaseFetch, "parse s3 location: "+err.Error())
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return "", "", errors.InvalidInput(errors.PhaseFetch, fmt.Sprintf("not an s3 location: %q", location))
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", errors.InvalidInput(errors.PhaseFetch, fmt.Sprintf("s3 location needs bucket and key: %q", location))
	}
	return bucket, key, nil
}
