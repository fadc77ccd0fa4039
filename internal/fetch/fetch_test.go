package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubscriptionSuccess(t *testing.T) {
	const body = "proxies: []\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "clash.meta" {
			t.Errorf("User-Agent = %q", ua)
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	data, err := Subscription(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Subscription: %v", err)
	}
	if string(data) != body {
		t.Errorf("body = %q, want %q", data, body)
	}
}

func TestSubscriptionUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Subscription(context.Background(), srv.URL)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("error = %v, want ErrDownloadFailed", err)
	}
}

func TestSubscriptionEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := Subscription(context.Background(), srv.URL)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("error = %v, want ErrDownloadFailed", err)
	}
}

func TestSubscriptionInvalidURL(t *testing.T) {
	cases := []string{
		"",
		"ftp://example.com/sub",
		"file:///etc/passwd",
		"not a url",
	}
	for _, rawURL := range cases {
		if _, err := Subscription(context.Background(), rawURL); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Subscription(%q) error = %v, want ErrInvalidURL", rawURL, err)
		}
	}
}
