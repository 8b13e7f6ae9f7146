package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/plumefeed/backend/internal/errors"
)

// S3Resolver fetches post photos from AWS S3
type S3Resolver struct {
	client *s3.Client
	bucket string
}

// NewS3Resolver creates a new S3 resolver
func NewS3Resolver(region, bucket string) (*S3Resolver, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Resolver{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// Resolve downloads the object at path, enforcing the size cap up front
// via HeadObject so an oversized photo is never pulled over the wire.
func (r *S3Resolver) Resolve(ctx context.Context, path string) (*Object, error) {
	key := strings.TrimPrefix(path, "/")

	head, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.RecoverableContent("photo object missing", err)
		}
		return nil, errors.Transient("photo metadata read", err)
	}

	size := aws.ToInt64(head.ContentLength)
	if size > MaxImageBytes {
		return nil, errors.RecoverableContent("photo object oversized", nil)
	}

	obj, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.RecoverableContent("photo object missing", err)
		}
		return nil, errors.Transient("photo read", err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(io.LimitReader(obj.Body, MaxImageBytes+1))
	if err != nil {
		return nil, errors.RecoverableContent("photo object unreadable", err)
	}
	if int64(len(data)) > MaxImageBytes {
		return nil, errors.RecoverableContent("photo object oversized", nil)
	}

	contentType := aws.ToString(obj.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Object{
		Data:        data,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if stderrors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
