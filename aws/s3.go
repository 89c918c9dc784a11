package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type S3Client struct {
	C        *s3.Client
	Bucket   *string
	uploader *manager.Uploader
}

// NewS3 returns a client bound to bucket. A non empty endpoint targets an
// S3 compatible provider such as Cloudflare R2 instead of AWS.
func NewS3(ctx context.Context, cfg aws.Config, endpoint, bucket string) (*S3Client, error) {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
			if o.Region == "" {
				o.Region = "auto"
			}
		}
	})

	b := aws.String(bucket)

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: b,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3Client{
		C:        client,
		Bucket:   b,
		uploader: manager.NewUploader(client),
	}, nil
}

// Get fetches an object. A missing key is reported through the boolean,
// not as an error.
func (s *S3Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.C.GetObject(ctx, &s3.GetObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}

		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to get object %s, %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read object %s, %w", key, err)
	}

	return data, true, nil
}

func (s *S3Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      s.Bucket,
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s, %w", key, err)
	}

	return nil
}
