package installer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/developer-dashboard/appcache2serviceworker"
)

// stubResponse describes one canned response for newFetcher.
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
