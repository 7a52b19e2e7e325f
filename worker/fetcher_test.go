package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/developer-dashboard/appcache2serviceworker"
	"github.com/developer-dashboard/appcache2serviceworker/backend/memorystore"
)

type stubResponse struct {
	status int
	header http.Header
	body   string
}

// newFetcher returns an appcache.Fetcher serving routes by exact request
// URL; any unrouted URL fails as if the network were unreachable.
func newFetcher(routes map[string]stubResponse) appcache.Fetcher {
	return func(_ context.Context, req *http.Request) (*http.Response, error) {
		route, ok := routes[req.URL.String()]
		if !ok {
			return nil, fmt.Errorf("stub fetcher: no route for %s", req.URL.String())
		}
		header := route.header.Clone()
		if header == nil {
			header = http.Header{}
		}
		return &http.Response{
			StatusCode: route.status,
			Status:     http.StatusText(route.status),
			Proto:      "HTTP/1.1",
			ProtoMajor: 1,
			ProtoMinor: 1,
			Header:     header,
			Body:       io.NopCloser(bytes.NewBufferString(route.body)),
			Request:    req,
		}, nil
	}
}

// newErrFetcher returns an appcache.Fetcher that always fails, as if the
// network were unreachable for every request.
func newErrFetcher(err error) appcache.Fetcher {
	return func(_ context.Context, _ *http.Request) (*http.Response, error) {
		return nil, err
	}
}

// stubRegistry is a minimal appcache.ClientRegistry for tests.
type stubRegistry struct {
	active map[string]struct{}
	urls   map[string]string
}

func (r *stubRegistry) ActiveClientIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *stubRegistry) ClientURL(_ context.Context, clientID string) (string, bool, error) {
	url, ok := r.urls[clientID]
	return url, ok, nil
}

var _ appcache.ClientRegistry = (*stubRegistry)(nil)

func mustOpenDB(t *testing.T) *appcache.Database {
	t.Helper()
	db, err := appcache.Open(context.Background(), memorystore.NewStorage())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db
}
