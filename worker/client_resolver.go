package worker

import (
	"context"
	"net/http"

	"github.com/developer-dashboard/appcache2serviceworker"
)

// FetchEvent is the Go analogue of a service-worker FetchEvent (§4.4, §6):
// enough information to resolve the originating client and apply the Rule
// Engine to Request.
type FetchEvent struct {
	Request *http.Request
	// ClientID is the platform-assigned id of the client that issued
	// Request, if the platform exposes one. HasClientID distinguishes
	// "no id" from "empty-string id".
	ClientID    string
	HasClientID bool
}

// ResolveClient implements the Client Resolver (§4.4): given a FetchEvent,
// produce an absolute client URL.
func ResolveClient(ctx context.Context, registry appcache.ClientRegistry, event FetchEvent) (string, error) {
	if event.HasClientID {
		url, ok, err := registry.ClientURL(ctx, event.ClientID)
		if err != nil {
			return "", err
		}
		if ok {
			return url, nil
		}
	}
	if ref := event.Request.Header.Get("Referer"); ref != "" {
		return ref, nil
	}
	return event.Request.URL.String(), nil
}
