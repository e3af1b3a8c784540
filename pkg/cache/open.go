package cache

import (
	"context"

	"github.com/matzehuels/lockmirror/pkg/config"
	"github.com/matzehuels/lockmirror/pkg/errors"
)

// Open returns the backend selected by cfg. The file backend falls back to
// [DefaultDir] when cfg.Dir is empty.
func Open(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case config.BackendNone, "":
		return NewNullCache(), nil
	case config.BackendFile:
		dir := cfg.Dir
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return NewNullCache(), nil
			}
			dir = d
		}
		return NewFileCache(dir)
	case config.BackendRedis:
		c, err := NewRedisCache(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect redis cache at %s", cfg.RedisAddr)
		}
		return c, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", cfg.Backend)
}
