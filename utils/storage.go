package utils

import (
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "github.com/princinho/jobportal/config"
)

// ObjectStorage is what the listing image endpoints need from a bucket.
type ObjectStorage interface {
	Put(ctx context.Context, key, contentType string, fh *multipart.FileHeader) (publicURL string, err error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(raw string) (string, bool)
}

// R2Client wraps the S3 client + bucket for Cloudflare R2.
type R2Client struct {
	S3           *s3.Client
	Bucket       string
	PublicDomain string
}

func NewR2Client(ctx context.Context, cfg appconfig.StorageConfig) (*R2Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true // required for R2
	})

	return &R2Client{S3: client, Bucket: cfg.Bucket, PublicDomain: cfg.PublicDomain}, nil
}

func (r *R2Client) Put(ctx context.Context, key, contentType string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	_, err = r.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(fh.Size),
		CacheControl:  aws.String("public, max-age=86400"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return r.publicURL(key), nil
}

func (r *R2Client) Delete(ctx context.Context, key string) error {
	_, err := r.S3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// KeyFromURL reverses publicURL for objects this client uploaded.
func (r *R2Client) KeyFromURL(raw string) (string, bool) {
	prefix := r.publicURL("")
	if raw == "" || !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	return strings.TrimPrefix(raw, prefix), true
}

func (r *R2Client) publicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", r.PublicDomain, r.Bucket, key)
}

// ListingImageKey builds a unique object key such as "jobs/<id>/<ts>-<uuid>.png".
func ListingImageKey(kind, listingID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%s/%d-%s%s", kind, listingID, time.Now().UTC().Unix(), uuid.NewString(), ext)
}

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// ValidateImage sniffs the upload and returns its content type.
func ValidateImage(fh *multipart.FileHeader, maxBytes int64) (string, error) {
	if fh.Size > maxBytes {
		return "", fmt.Errorf("file too large (max %d MB)", maxBytes>>20)
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	buffer := make([]byte, 512)
	n, err := f.Read(buffer)
	if err != nil && n == 0 {
		return "", fmt.Errorf("failed to read file header")
	}

	detected := strings.ToLower(http.DetectContentType(buffer[:n]))
	if !allowedImageTypes[detected] {
		return "", fmt.Errorf("invalid file type")
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); byExt != "" && byExt != detected {
		return "", fmt.Errorf("file extension does not match content")
	}
	return detected, nil
}
