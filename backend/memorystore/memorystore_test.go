package memorystore

import (
	"testing"

	"github.com/developer-dashboard/appcache2serviceworker/apptest"
)

func TestStoreCompliance(t *testing.T) {
	apptest.KVStore(t, New())
}

func TestStorageCompliance(t *testing.T) {
	apptest.CacheStorage(t, NewStorage())
}
