package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestManagerVerify(t *testing.T) {
	manager, err := NewManager("super-secret")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if !manager.Enabled() {
		t.Fatal("manager should be enabled")
	}
	if !manager.Verify("super-secret") {
		t.Error("correct token rejected")
	}
	if manager.Verify("wrong") {
		t.Error("wrong token accepted")
	}
	if manager.Verify("") {
		t.Error("empty token accepted")
	}
}

func TestManagerDisabled(t *testing.T) {
	manager, err := NewManager("  ")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if manager.Enabled() {
		t.Error("blank token should disable the manager")
	}
	// 未配置令牌时任何候选都不通过
	if manager.Verify("anything") {
		t.Error("disabled manager must reject all tokens")
	}
}

func TestRequireAdmin(t *testing.T) {
	manager, err := NewManager("super-secret")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	called := false
	h := RequireAdmin(manager, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/history", nil)
	req.Header.Set(AuthHeader, "super-secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Error("valid token should reach the handler")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAdminBearer(t *testing.T) {
	manager, err := NewManager("super-secret")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	called := false
	h := RequireAdmin(manager, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/history", nil)
	req.Header.Set("Authorization", "Bearer super-secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Error("bearer token should reach the handler")
	}
}

func TestRequireAdminRejects(t *testing.T) {
	manager, err := NewManager("super-secret")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	h := RequireAdmin(manager, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	for _, set := range []func(*http.Request){
		func(r *http.Request) {},
		func(r *http.Request) { r.Header.Set(AuthHeader, "wrong") },
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong") },
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/history", nil)
		set(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	}
}
