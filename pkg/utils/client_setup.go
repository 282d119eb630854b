package utils

import (
	"net/http"
)

type bearerTokenTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.base.RoundTrip(req)
}

// NewHTTPClientWithBearerToken returns a client that attaches token to every
// request. An empty token yields a client that sends no Authorization header.
// Deadlines are left to the caller's context.
func NewHTTPClientWithBearerToken(token string) *http.Client {
	return &http.Client{
		Transport: &bearerTokenTransport{
			base:  http.DefaultTransport,
			token: token,
		},
	}
}
