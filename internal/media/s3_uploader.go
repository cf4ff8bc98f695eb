package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Uploader stores attachments in an S3 bucket.
type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
	region   string
	prefix   string
}

// NewS3Uploader loads the default AWS credential chain for region.
func NewS3Uploader(ctx context.Context, region, bucket, prefix string) (*S3Uploader, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Uploader{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		region:   region,
		prefix:   prefix,
	}, nil
}

// Upload writes body under <prefix>/<uuid><ext>. The object key is the storage id.
func (s *S3Uploader) Upload(ctx context.Context, file LocalFile, body io.Reader) (Stored, error) {
	key := path.Join(s.prefix, uuid.NewString())
	if ext := file.Extension(); ext != "" {
		key += "." + ext
	}
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(file.MIMEType),
	})
	if err != nil {
		return Stored{}, err
	}
	location := out.Location
	if location == "" {
		location = fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, url.PathEscape(key))
	}
	return Stored{URL: location, StorageID: key}, nil
}
