// Package artifact uploads scan results to S3-compatible object storage.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/phobologic/surveyor/internal/logging"
	"github.com/phobologic/surveyor/internal/model"
)

// Config locates the bucket scans are uploaded to.
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	UseSSL    bool   `mapstructure:"useSSL"`
	Prefix    string `mapstructure:"prefix"`
}

// Enabled reports whether an endpoint and bucket are configured.
func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// Store uploads scan results to one bucket.
type Store struct {
	client *minio.Client
	cfg    Config
	logger *slog.Logger
}

// New connects to cfg.Endpoint and creates the bucket if it does not exist.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if !cfg.Enabled() {
		return nil, errors.New("artifact store requires an endpoint and a bucket")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Endpoint, err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &Store{client: cli, cfg: cfg, logger: logging.OrDiscard(logger)}, nil
}

// ObjectKey is where a scan is stored: <prefix>/<project>/<scan-id>.json.
func ObjectKey(prefix string, res *model.ScanResult) string {
	project := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '-'
		}
		return r
	}, res.ProjectName)
	if project == "" {
		project = "unnamed"
	}
	return path.Join(strings.Trim(prefix, "/"), project, res.ID+".json")
}

// UploadScan stores res as JSON and returns its object URL.
func (s *Store) UploadScan(ctx context.Context, res *model.ScanResult) (string, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encoding scan %s: %w", res.ID, err)
	}
	key := ObjectKey(s.cfg.Prefix, res)
	_, err = s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"scan-id":      res.ID,
			"project-name": res.ProjectName,
			"status":       string(res.Status),
		},
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	u := *s.client.EndpointURL()
	u.Path = path.Join("/", s.cfg.Bucket, key)
	s.logger.Info("uploaded scan", "key", key, "bytes", len(data))
	return u.String(), nil
}

// Fetch downloads a previously uploaded scan by object key.
func (s *Store) Fetch(ctx context.Context, key string) (*model.ScanResult, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	defer func() { _ = obj.Close() }()

	var res model.ScanResult
	if err := json.NewDecoder(obj).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return &res, nil
}
