package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// Source tells where a response came from.
type Source string

const (
	SourceNetwork     Source = "network"
	SourceCache       Source = "cache"
	SourceFallback    Source = "fallback"
	SourceUnavailable Source = "unavailable"
)

const offlineBody = `{"error":"Offline","message":"This content is not available offline"}`

// Request is an outbound resource request. URL is the path (and query) relative
// to the storefront origin.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewRequest creates a request with an empty header.
func NewRequest(method, url string) *Request {
	return &Request{Method: method, URL: url, Header: http.Header{}}
}

// Path returns the request path without query.
func (r *Request) Path() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}
	return u.Path
}

// Accepts reports whether the Accept header mentions mime.
func (r *Request) Accepts(mime string) bool {
	return strings.Contains(r.Header.Get("Accept"), mime)
}

// Response is a resource response, whatever satisfied it.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Source     Source
	// Partition is set when the response was read from the cache.
	Partition string
	// Err holds the failure that led to an unavailable response.
	Err error
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Unavailable reports the structured offline result, which is distinct
// from any real (even empty) response.
func (r *Response) Unavailable() bool {
	return r.Source == SourceUnavailable
}

func (r *Response) withSource(source Source) *Response {
	out := *r
	out.Source = source
	return &out
}

func unavailable(cause error) *Response {
	return &Response{
		StatusCode: http.StatusServiceUnavailable,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(offlineBody),
		Source:     SourceUnavailable,
		Err:        cause,
	}
}
