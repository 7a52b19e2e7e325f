//go:build integration

package natskv

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	natscontainer "github.com/testcontainers/testcontainers-go/modules/nats"

	"github.com/developer-dashboard/appcache2serviceworker/apptest"
)

const natsImage = "nats:2-alpine"

func setupNATS(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	container, err := natscontainer.Run(ctx, natsImage, testcontainers.WithCmd("-js"))
	if err != nil {
		t.Fatalf("start NATS container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Errorf("terminate NATS container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("NATS connection string: %v", err)
	}

	nc, err := nats.Connect(endpoint)
	if err != nil {
		t.Fatalf("connect to NATS: %v", err)
	}
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("create JetStream context: %v", err)
	}

	return New(js)
}

func TestStoreComplianceIntegration(t *testing.T) {
	storage := setupNATS(t)
	store, err := storage.Open(context.Background(), "store-a")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	apptest.KVStore(t, store)
}

func TestStorageComplianceIntegration(t *testing.T) {
	apptest.CacheStorage(t, setupNATS(t))
}

func TestBucketIsolationIntegration(t *testing.T) {
	ctx := context.Background()
	storage := setupNATS(t)

	a, err := storage.Open(ctx, "cache-a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := storage.Open(ctx, "cache-b")
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Put(ctx, "key", []byte("value-a")); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := b.Get(ctx, "key"); err != nil || ok {
		t.Fatalf("bucket b saw bucket a's key: ok=%v err=%v", ok, err)
	}
}
