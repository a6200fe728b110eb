package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ytget/yt-link-bot/internal/model"
)

// S3 location scheme persisted in the registry
const S3Scheme = "s3://"

// DefaultContentType is used when the extension is unknown
const DefaultContentType = "application/octet-stream"

// S3API is the subset of the S3 client used here
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Presigner issues presigned GET requests
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options configures NewS3Placer
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // custom endpoint of S3 compatible stores
	AccessKey string
	SecretKey string
	PathStyle bool
	TTL       time.Duration
}

// S3Placer uploads artifacts to a bucket and hands out presigned URLs
type S3Placer struct {
	client    S3API
	presigner S3Presigner
	bucket    string
	ttl       time.Duration
	now       func() time.Time
}

// NewS3Placer builds the S3 client from opts and the default AWS config chain
func NewS3Placer(ctx context.Context, opts S3Options) (*S3Placer, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return NewS3PlacerWithClient(client, s3.NewPresignClient(client), opts.Bucket, opts.TTL), nil
}

// NewS3PlacerWithClient creates a placer over existing clients
func NewS3PlacerWithClient(client S3API, presigner S3Presigner, bucket string, ttl time.Duration) *S3Placer {
	return &S3Placer{client: client, presigner: presigner, bucket: bucket, ttl: ttl, now: time.Now}
}

// Place uploads the artifact, removes the local copy and presigns a GET URL
func (p *S3Placer) Place(ctx context.Context, ownerID int64, localPath string) (*Placement, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPlacementFailed, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", model.ErrPlacementFailed, err)
	}

	fileName := filepath.Base(localPath)
	key := ObjectKey(ownerID, fileName)

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(fileName)),
	})
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to upload to S3: %v", model.ErrPlacementFailed, err)
	}
	log.Printf("[INFO] uploaded %s to s3://%s/%s", fileName, p.bucket, key)

	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] failed to remove local copy %s: %v", localPath, err)
	}

	presigned, err := p.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to presign: %v", model.ErrPlacementFailed, err)
	}

	return &Placement{
		Location:  S3Scheme + p.bucket + "/" + key,
		FileName:  fileName,
		URL:       presigned.URL,
		Size:      info.Size(),
		ExpiresAt: p.now().Add(p.ttl),
	}, nil
}

// Remove deletes the object behind an s3:// location; other locations are local files
func (p *S3Placer) Remove(ctx context.Context, location string) error {
	bucket, key, ok := ParseS3Location(location)
	if !ok {
		return os.Remove(location)
	}
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Expire deletes bucket objects last modified at least olderThan ago
func (p *S3Placer) Expire(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := p.now().Add(-olderThan)
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
	})

	deleted := 0
	var errs []error
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || obj.LastModified == nil || obj.LastModified.After(cutoff) {
				continue
			}
			_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(p.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				log.Printf("[WARN] failed to delete %s: %v", *obj.Key, err)
				errs = append(errs, err)
				continue
			}
			log.Printf("[DEBUG] deleted from S3: s3://%s/%s", p.bucket, *obj.Key)
			deleted++
		}
	}
	return deleted, errors.Join(errs...)
}

// ObjectKey returns "<owner>/<file>"
func ObjectKey(ownerID int64, fileName string) string {
	return path.Join(strconv.FormatInt(ownerID, 10), fileName)
}

// ParseS3Location splits s3://bucket/key
func ParseS3Location(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, S3Scheme)
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

func contentType(fileName string) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return DefaultContentType
}
