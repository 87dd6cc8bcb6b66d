// Package diagnostics keeps page captures from failed humanize runs.
package diagnostics

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"kwala.backend/internal/config"
	"kwala.backend/internal/domain/services"
)

// New returns the sink selected by cfg.Sink.
func New(ctx context.Context, cfg config.DiagnosticsConfig) (services.DiagnosticSink, error) {
	switch cfg.Sink {
	case "", config.SinkNone:
		return NopSink{}, nil
	case config.SinkDir:
		return NewDirSink(cfg.Dir)
	case config.SinkMinio:
		return NewMinioSink(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown diagnostics sink %q", cfg.Sink)
	}
}

// NopSink discards captures.
type NopSink struct{}

func (NopSink) Capture(context.Context, string, ...services.Artifact) error { return nil }

// DirSink writes captures under a local directory.
type DirSink struct {
	dir string
}

func NewDirSink(dir string) (*DirSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("diagnostics dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create diagnostics dir: %w", err)
	}
	return &DirSink{dir: dir}, nil
}

func (s *DirSink) Capture(_ context.Context, prefix string, artifacts ...services.Artifact) error {
	key := captureKey(prefix)
	if err := os.MkdirAll(filepath.Join(s.dir, key), 0o755); err != nil {
		return fmt.Errorf("create capture dir: %w", err)
	}
	for _, a := range artifacts {
		path := filepath.Join(s.dir, key, cleanSegment(a.Name))
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// MinioSink uploads captures to an S3-compatible bucket.
type MinioSink struct {
	client *minio.Client
	bucket string
}

func NewMinioSink(ctx context.Context, cfg config.DiagnosticsConfig) (*MinioSink, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := &MinioSink{client: client, bucket: cfg.MinioBucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioSink) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *MinioSink) Capture(ctx context.Context, prefix string, artifacts ...services.Artifact) error {
	key := captureKey(prefix)
	for _, a := range artifacts {
		name := key + "/" + cleanSegment(a.Name)
		_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(a.Data), int64(len(a.Data)), minio.PutObjectOptions{
			ContentType: a.ContentType,
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
	}
	return nil
}

var (
	now   = time.Now
	newID = uuid.NewString
)

// captureKey names one capture. Every call yields a fresh key so captures
// from the same stage never overwrite each other.
func captureKey(prefix string) string {
	return cleanSegment(prefix) + "-" + now().UTC().Format("20060102T150405Z") + "-" + newID()
}

func cleanSegment(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, s)
}
