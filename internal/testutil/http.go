package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type RequestOption func(req *http.Request) *http.Request

func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) *http.Request {
		req.Header.Set(key, value)
		return req
	}
}

// Bearer = WithHeader("Authorization", "Bearer "+token)
func Bearer(token string) RequestOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// JSONBody encodes v as the request body.
func JSONBody(t testing.TB, v any) io.Reader {
	t.Helper()
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

// Do sends a request to h and returns the recorded response.
func Do(t testing.TB, h http.Handler, method, target string, body any, opts ...RequestOption) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, JSONBody(t, body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		req = opt(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals the response body into a fresh T.
func Decode[T any](t testing.TB, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}
