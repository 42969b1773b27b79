package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

// S3Service uploads completed files to Amazon S3 (or compatible APIs).
type S3Service struct {
	client    *s3.Client
	uploader  *manager.Uploader
	bucket    string
	keyPrefix string
}

// NewFromAppConfig builds the storage service for the configured bucket,
// or the Disabled service when no bucket is set.
func NewFromAppConfig(ctx context.Context, config *mdsconfig.Config) (Service, error) {
	if config.Storage.S3Bucket == "" {
		return Disabled, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{}
	if config.Storage.S3Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(config.Storage.S3Region))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Storage.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Storage.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	logutils.Log.Infof("Using s3 bucket %s (region %s)", config.Storage.S3Bucket, config.Storage.S3Region)
	return &S3Service{
		client:    client,
		uploader:  manager.NewUploader(client),
		bucket:    config.Storage.S3Bucket,
		keyPrefix: config.Storage.S3KeyPrefix,
	}, nil
}

func (*S3Service) Enabled() bool { return true }

// UploadFiles stores each local file under keyPrefix/keyBase/ and returns
// the s3 location of the group.
func (s *S3Service) UploadFiles(ctx context.Context, files []string, keyBase string) (string, error) {
	for _, file := range files {
		key := objectKey(s.keyPrefix, keyBase, filepath.Base(file))

		f, err := os.Open(file)
		if err != nil {
			return "", fmt.Errorf("open file %s: %w", file, err)
		}
		_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   f,
			ACL:    types.ObjectCannedACLPrivate,
		})
		closeErr := f.Close()
		if err != nil {
			return "", fmt.Errorf("upload %s: %w", file, err)
		}
		if closeErr != nil {
			return "", fmt.Errorf("close file %s: %w", file, closeErr)
		}
	}

	return "s3://" + s.bucket + "/" + objectKey(s.keyPrefix, keyBase, ""), nil
}

// objectKey joins prefix segments with single slashes, tolerating empty
// and slash-decorated inputs.
func objectKey(prefix, keyBase, fileName string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{prefix, keyBase, fileName} {
		if trimmed := strings.Trim(part, "/"); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "/")
}
