package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"agrolink/api/internal/config"
)

const presignTTL = 15 * time.Minute

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// IS3Storage holds product images and archived contract documents.
type IS3Storage interface {
	GeneratePresignedPutURL(ctx context.Context, ownerID, productID, filename, contentType string) (string, string, error)
	GeneratePresignedGetURL(ctx context.Context, key string) (string, error)
	PutObject(ctx context.Context, key, contentType string, data []byte) error
	GetObject(ctx context.Context, key string) ([]byte, string, error)
}

type s3Storage struct {
	bucket  string
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3Storage builds the bucket client. AWS_S3_ENDPOINT points it at an
// S3-compatible store such as MinIO, using path-style addressing.
func NewS3Storage(cfg *config.Config) (IS3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AwsRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID, cfg.AwsSecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AwsS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AwsS3Endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Storage{
		bucket:  cfg.AwsS3Bucket,
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// UploadKey returns a collision-free key for a client upload. Only the base
// name of filename survives, with anything outside [A-Za-z0-9._-] replaced.
func UploadKey(ownerID, productID, filename string) string {
	name := unsafeKeyChars.ReplaceAllString(path.Base("/"+filename), "_")
	if name == "" || name == "_" || name == "." {
		name = "image"
	}
	return fmt.Sprintf("uploads/%s/%s/%s_%s", ownerID, productID, uuid.NewString(), name)
}

// GeneratePresignedPutURL returns a short-lived upload URL and the key the
// client must later confirm.
func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, ownerID, productID, filename, contentType string) (string, string, error) {
	key := UploadKey(ownerID, productID, filename)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", "", fmt.Errorf("presign upload %s: %w", key, err)
	}
	log.Printf("Presigned upload for %s", key)
	return req.URL, key, nil
}

func (s *s3Storage) GeneratePresignedGetURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign download %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *s3Storage) PutObject(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// GetObject returns the object bytes and stored content type.
func (s *s3Storage) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var missing *types.NoSuchKey
	if errors.As(err, &missing) {
		return nil, "", fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", key, err)
	}
	return data, aws.ToString(out.ContentType), nil
}
