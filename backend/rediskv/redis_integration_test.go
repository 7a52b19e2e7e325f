//go:build integration

package rediskv

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/developer-dashboard/appcache2serviceworker/apptest"
)

const redisImage = "redis:7-alpine"

func setupRedis(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	container, err := rediscontainer.Run(ctx, redisImage)
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Errorf("terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}

	return New(client)
}

func TestStoreComplianceIntegration(t *testing.T) {
	storage := setupRedis(t)
	store, err := storage.Open(context.Background(), "store-a")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	apptest.KVStore(t, store)
}

func TestStorageComplianceIntegration(t *testing.T) {
	apptest.CacheStorage(t, setupRedis(t))
}
