package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LocalStorage хранит объекты на локальном диске: <root>/<bucket>/<path>.
// Используется в development и в тестах вместо S3.
type LocalStorage struct {
	rootPath       string
	maxUploadBytes int64
	publicBaseURL  string
	signingKey     []byte
}

var _ ObjectStore = (*LocalStorage)(nil)

// NewLocalStorage создаёт файловое хранилище.
func NewLocalStorage(rootPath string, maxUploadMB int64, publicBaseURL, signingKey string) (*LocalStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &LocalStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
		publicBaseURL:  strings.TrimRight(publicBaseURL, "/"),
		signingKey:     []byte(signingKey),
	}, nil
}

// Download читает объект целиком.
func (s *LocalStorage) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, err := s.resolve(bucket, path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, path)
		}
		return nil, fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	return data, nil
}

// Upload записывает объект через временный файл и rename.
func (s *LocalStorage) Upload(ctx context.Context, bucket, path string, data []byte, opts UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.maxUploadBytes > 0 && int64(len(data)) > s.maxUploadBytes {
		return fmt.Errorf("%w: %d байт", ErrObjectTooLarge, s.maxUploadBytes)
	}

	target, err := s.resolve(bucket, path)
	if err != nil {
		return err
	}

	if !opts.Upsert {
		if _, err := os.Stat(target); err == nil {
			return fmt.Errorf("%w: %s/%s", ErrObjectExists, bucket, path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("storage: не удалось создать каталог: %w", err)
	}

	tempPath := target + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if err := os.Rename(tempPath, target); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}
	return nil
}

// Remove удаляет объекты, отсутствующие пропускаются.
func (s *LocalStorage) Remove(ctx context.Context, bucket string, paths ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, p := range paths {
		target, err := s.resolve(bucket, p)
		if err != nil {
			return err
		}
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: не удалось удалить файл: %w", err)
		}
	}
	return nil
}

// Move переносит объект, существующий объект по пути назначения перезаписывается.
func (s *LocalStorage) Move(ctx context.Context, bucket, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := s.resolve(bucket, from)
	if err != nil {
		return err
	}
	dst, err := s.resolve(bucket, to)
	if err != nil {
		return err
	}

	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, from)
		}
		return fmt.Errorf("storage: не удалось проверить файл: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("storage: не удалось создать каталог: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("storage: не удалось переместить файл: %w", err)
	}
	return nil
}

// PublicURL адрес объекта в локальном файловом сервере.
func (s *LocalStorage) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/files/%s/%s", s.publicBaseURL, url.PathEscape(bucket), escapePath(path))
}

// SignedURL адрес с подписанным токеном, срок жизни ttl.
func (s *LocalStorage) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.resolve(bucket, path); err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"bkt":  bucket,
		"path": path,
		"exp":  time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("storage: не удалось подписать ссылку: %w", err)
	}
	return s.PublicURL(bucket, path) + "?token=" + url.QueryEscape(token), nil
}

// VerifySignedToken проверяет токен, выданный SignedURL, для конкретного объекта.
func (s *LocalStorage) VerifySignedToken(bucket, path, token string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidToken
	}
	if claims["bkt"] != bucket || claims["path"] != path {
		return ErrInvalidToken
	}
	return nil
}

// resolve проверяет путь и возвращает абсолютный путь на диске.
func (s *LocalStorage) resolve(bucket, path string) (string, error) {
	if bucket == "" || path == "" {
		return "", ErrInvalidPath
	}
	if strings.Contains(bucket, "/") || strings.Contains(bucket, "\\") || bucket == ".." {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, bucket)
	}

	clean := filepath.ToSlash(filepath.Clean("/" + path))
	if clean != "/"+strings.TrimPrefix(path, "/") || strings.Contains(path, "\\") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	return filepath.Join(s.rootPath, bucket, filepath.FromSlash(clean)), nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
