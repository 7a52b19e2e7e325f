package appcache

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httputil"
)

// EncodeResponse serializes resp for storage in a [KVStore], the same way
// the teacher's Transport dumps a response before handing it to Cache.Set
// (httputil.DumpResponse in setupCachingBody/storeCachedResponse). The
// response body is fully read in the process; callers must not use resp
// afterward.
func EncodeResponse(resp *http.Response) ([]byte, error) {
	return httputil.DumpResponse(resp, true)
}

// DecodeResponse parses bytes previously produced by [EncodeResponse] back
// into an *http.Response associated with req, per http.ReadResponse's
// contract. req may be nil.
func DecodeResponse(raw []byte, req *http.Request) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(raw)), req)
}
