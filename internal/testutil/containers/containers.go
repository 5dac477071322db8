//go:build integration

// Package containers starts throwaway service containers for integration
// tests. It is gated behind the "integration" build tag so unit builds
// never link the Docker client:
//
//	//go:build integration
//
// The shared JWKS cache in pkg/clients/redis is the only component that
// talks to an external store, so Redis is the only container offered.
//
//	result, err := containers.StartRedis(ctx)
//	if err != nil { ... }
//	defer result.Container.Terminate(ctx)
package containers

import (
	"context"
	"fmt"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// DefaultRedisImage is the image used for Redis integration tests.
const DefaultRedisImage = "docker.io/redis:7-alpine"

// RedisResult is a started Redis container plus its redis:// URL. The
// caller terminates the container.
type RedisResult struct {
	Container *tcredis.RedisContainer

	// ConnString looks like "redis://localhost:55679". It is accepted
	// as redis.Config.URL as-is.
	ConnString string
}

// StartRedis starts [DefaultRedisImage] without authentication. If the
// connection string cannot be read the container is terminated before
// the error is returned.
func StartRedis(ctx context.Context) (*RedisResult, error) {
	container, err := tcredis.Run(ctx, DefaultRedisImage)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start redis container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get redis connection string: %w", err)
	}
	return &RedisResult{Container: container, ConnString: connStr}, nil
}
