package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// s3API подмножество клиента S3, которое использует хранилище.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config параметры S3-совместимого хранилища (AWS, MinIO, Supabase Storage).
type S3Config struct {
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	PublicBaseURL  string
}

// S3Storage объектное хранилище поверх aws-sdk-go-v2.
type S3Storage struct {
	client        s3API
	presigner     presignAPI
	publicBaseURL string
}

var _ ObjectStore = (*S3Storage)(nil)

// NewS3Storage создаёт клиент S3 со статическими учётными данными.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось загрузить конфигурацию S3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return newS3Storage(client, s3.NewPresignClient(client), cfg.PublicBaseURL), nil
}

func newS3Storage(client s3API, presigner presignAPI, publicBaseURL string) *S3Storage {
	return &S3Storage{
		client:        client,
		presigner:     presigner,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Download читает объект целиком.
func (s *S3Storage) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, path)
		}
		return nil, fmt.Errorf("storage: не удалось скачать %s/%s: %w", bucket, path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: ошибка чтения %s/%s: %w", bucket, path, err)
	}
	return data, nil
}

// Upload записывает объект. Без Upsert запись условная (If-None-Match: *).
func (s *S3Storage) Upload(ctx context.Context, bucket, path string, data []byte, opts UploadOptions) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if !opts.Upsert {
		in.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		if hasCode(err, "PreconditionFailed") {
			return fmt.Errorf("%w: %s/%s", ErrObjectExists, bucket, path)
		}
		return fmt.Errorf("storage: не удалось загрузить %s/%s: %w", bucket, path, err)
	}
	return nil
}

// Remove удаляет объекты одним запросом.
func (s *S3Storage) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	ids := make([]types.ObjectIdentifier, len(paths))
	for i, p := range paths {
		ids[i] = types.ObjectIdentifier{Key: aws.String(p)}
	}

	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("storage: не удалось удалить объекты в %s: %w", bucket, err)
	}
	if out != nil && len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("storage: не удалось удалить %s: %s", aws.ToString(first.Key), aws.ToString(first.Message))
	}
	return nil
}

// Move копирует объект и удаляет исходный.
func (s *S3Storage) Move(ctx context.Context, bucket, from, to string) error {
	if from == to {
		return nil
	}

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		CopySource: aws.String(bucket + "/" + escapePath(from)),
		Key:        aws.String(to),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, from)
		}
		return fmt.Errorf("storage: не удалось скопировать %s в %s: %w", from, to, err)
	}

	return s.Remove(ctx, bucket, from)
}

// PublicURL адрес объекта в публичном бакете.
func (s *S3Storage) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, bucket, escapePath(path))
}

// SignedURL presigned GET ссылка.
func (s *S3Storage) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("storage: не удалось подписать ссылку: %w", err)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	return hasCode(err, "NoSuchKey", "NotFound")
}

func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
