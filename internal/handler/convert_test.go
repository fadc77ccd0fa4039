package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clashsub/internal/fetch"
	"clashsub/internal/storage"
)

const upstreamSubscription = `proxies:
  - name: HK-01
    type: ss
    server: hk.example.com
    port: 443
  - name: US-01
    type: ss
    server: us.example.com
    port: 443
`

func newTestRepo(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.NewRepository(":memory:")
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestConvertHandlerSuccess(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(upstreamSubscription))
	}))
	defer upstream.Close()

	repo := newTestRepo(t)
	h := NewConvertHandler(fetch.Subscription, repo, nil, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/sub?url="+upstream.URL, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/yaml; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, fragment := range []string{"proxy-groups:", "默认流量", "节点选择", "HK-01", "MATCH,默认流量"} {
		if !strings.Contains(body, fragment) {
			t.Errorf("response missing %q", fragment)
		}
	}
}

func TestConvertHandlerCaches(t *testing.T) {
	var hits atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(upstreamSubscription))
	}))
	defer upstream.Close()

	repo := newTestRepo(t)
	h := NewConvertHandler(fetch.Subscription, repo, nil, time.Hour)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/sub?url="+upstream.URL, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hit %d times, want 1 (second request served from cache)", got)
	}

	// nocache=1 强制回源
	req := httptest.NewRequest(http.MethodGet, "/sub?url="+upstream.URL+"&nocache=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("nocache request: status = %d", rec.Code)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("upstream hit %d times after nocache, want 2", got)
	}
}

func TestConvertHandlerRecordsHistory(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(upstreamSubscription))
	}))
	defer upstream.Close()

	repo := newTestRepo(t)
	h := NewConvertHandler(fetch.Subscription, repo, nil, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/sub?url="+upstream.URL+"&strategy=auto", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	records, err := repo.RecentConversions(req.Context(), 10)
	if err != nil {
		t.Fatalf("RecentConversions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d history records, want 1", len(records))
	}
	if records[0].Strategy != "auto" || records[0].ProxyCount != 2 {
		t.Errorf("record = %+v", records[0])
	}
}

func TestConvertHandlerBadRequest(t *testing.T) {
	repo := newTestRepo(t)
	h := NewConvertHandler(fetch.Subscription, repo, nil, time.Hour)

	cases := []struct {
		name   string
		target string
	}{
		{"missing url", "/sub"},
		{"unknown strategy", "/sub?url=https://example.com/sub&strategy=fancy"},
		{"bad url scheme", "/sub?url=ftp://example.com/sub"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestConvertHandlerUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	h := NewConvertHandler(fetch.Subscription, newTestRepo(t), nil, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/sub?url="+upstream.URL, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestConvertHandlerInvalidUpstreamContent(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mode: rule\n"))
	}))
	defer upstream.Close()

	h := NewConvertHandler(fetch.Subscription, newTestRepo(t), nil, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/sub?url="+upstream.URL, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("error body is not json: %v", err)
	}
	if payload["error"] == "" {
		t.Error("error body missing message")
	}
}

func TestConvertHandlerMethodNotAllowed(t *testing.T) {
	h := NewConvertHandler(fetch.Subscription, newTestRepo(t), nil, time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/sub?url=https://example.com/sub", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
