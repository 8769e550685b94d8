package backup

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectInfo is the subset of an S3 listing entry RotateOldBackups and
// ListBackups need; narrower than s3.Object so callers never touch the
// SDK's own pointer-heavy types directly.
type ObjectInfo struct {
	Key  string
	Size int64
}

// S3Client is a thin S3-compatible object storage wrapper (works against
// AWS S3 as well as any R2/MinIO-style endpoint exposing the S3 API).
// The teacher's own R2Client was not retrieved with this pack, so this
// is authored directly against the aws-sdk-go-v2 sub-packages the
// teacher's go.mod already requires.
type S3Client struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewS3Client builds a client from static credentials; region "auto"
// (Cloudflare R2's convention) is passed through unmodified since
// aws-sdk-go-v2 only uses it for SigV4 signing, not endpoint resolution.
func NewS3Client(ctx context.Context, bucket, region, accessKey, secretKey string) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Client{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}, nil
}

// Upload streams r to key under the configured bucket.
func (c *S3Client) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	return err
}

// List returns every object whose key has the given prefix.
func (c *S3Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			var size int64
			if obj.Size != nil {
				size = *obj.Size
			}
			out = append(out, ObjectInfo{Key: *obj.Key, Size: size})
		}
	}
	return out, nil
}

// Delete removes key from the bucket.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	return err
}
