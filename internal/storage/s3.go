package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"eventsbga/internal/logger"
)

const (
	// MaxImageSize is the largest venue image accepted (5MB).
	MaxImageSize = 5 * 1024 * 1024
	// FolderVenues is the key prefix for venue images.
	FolderVenues = "venues"
)

var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var (
	ErrUnsupportedType = errors.New("image must be jpeg, png or webp")
	ErrTooLarge        = errors.New("image exceeds 5MB")
	ErrEmpty           = errors.New("image is empty")
)

type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// PublicBaseURL overrides the default virtual-hosted bucket URL, e.g. a CDN.
	PublicBaseURL string
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 uploads venue images to a single bucket.
type S3 struct {
	uploader uploader
	cfg      S3Config
}

// NewS3 builds the client from static credentials when both are configured and
// from the default AWS credential chain otherwise.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
		logger.Info("S3 client using static credentials", "region", cfg.Region, "bucket", cfg.Bucket)
	} else {
		logger.Warn("S3 client using default credential chain", "region", cfg.Region)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3{
		uploader: manager.NewUploader(client),
		cfg:      cfg,
	}, nil
}

// ValidateImage checks the declared content type and size and returns the
// file extension for the object key.
func ValidateImage(contentType string, size int64) (string, error) {
	if size <= 0 {
		return "", ErrEmpty
	}
	if size > MaxImageSize {
		return "", ErrTooLarge
	}
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := AllowedImageTypes[ct]
	if !ok {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

// VenueImageKey returns venues/{profileID}/{random}{ext}.
func VenueImageKey(profileID, ext string) string {
	return path.Join(FolderVenues, profileID, uuid.NewString()+ext)
}

func (s *S3) PublicURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// UploadImage streams body to the bucket with public-read ACL and returns the
// object URL.
func (s *S3) UploadImage(ctx context.Context, key, contentType string, size int64, body io.Reader) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		ACL:           types.ObjectCannedACLPublicRead,
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	logger.Info("image uploaded", "bucket", s.cfg.Bucket, "key", key, "bytes", size)
	return s.PublicURL(key), nil
}
