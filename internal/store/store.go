// Package store keeps serialized timelines in a named blob store: a local
// directory, a SQL database, Redis or an S3-compatible bucket.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/sequencer/internal/config"
)

var (
	ErrNotFound    = errors.New("store: timeline not found")
	ErrInvalidName = errors.New("store: invalid timeline name")
)

// Info describes one stored timeline.
type Info struct {
	Name     string
	Size     int64
	Modified time.Time
}

type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	// List returns the stored timelines ordered by name.
	List(ctx context.Context) ([]Info, error)
	Close() error
}

// ValidateName accepts non-empty names without path separators or
// leading dots.
func ValidateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// New opens the store selected by cfg.Kind.
func New(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("store", cfg.Kind))
	switch cfg.Kind {
	case "file", "":
		return NewFileStore(cfg.Dir)
	case "sql":
		return NewSQLStore(cfg.DSN, log)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case "minio":
		return NewMinioStore(ctx, MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioSSL,
		}, log)
	default:
		return nil, fmt.Errorf("store: unknown kind %q", cfg.Kind)
	}
}

func sortInfos(infos []Info) {
	slices.SortFunc(infos, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
}
