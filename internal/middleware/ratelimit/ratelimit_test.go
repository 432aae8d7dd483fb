package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func TestLimiterRejectsOverBudget(t *testing.T) {
	l := NewLimiter("test", Config{Requests: 2, Window: time.Minute}, func(r *http.Request) string {
		return r.Header.Get("X-Client")
	})
	h := l.Middleware()(http.HandlerFunc(ok))

	do := func(client string, htmx bool) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/payments", nil)
		r.Header.Set("X-Client", client)
		if htmx {
			r.Header.Set("HX-Request", "true")
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	if do("a", false).Code != http.StatusOK || do("a", false).Code != http.StatusOK {
		t.Fatal("first two requests should pass")
	}
	rec := do("a", true)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if do("b", false).Code != http.StatusOK {
		t.Error("other clients keep their own budget")
	}
	if l.Hits() != 1 {
		t.Errorf("hits = %d", l.Hits())
	}
}

func TestWritesOnlySkipsReads(t *testing.T) {
	l := NewLimiter("writes", Config{Requests: 1, Window: time.Minute}, func(*http.Request) string { return "same" })
	h := l.WritesOnly()(http.HandlerFunc(ok))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %d status = %d", i, rec.Code)
		}
	}

	codes := []int{}
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("POST codes = %v", codes)
	}
}

func TestDefaultConfigOnInvalid(t *testing.T) {
	l := NewLimiter("x", Config{}, nil)
	if l.config != DefaultConfig() {
		t.Errorf("config = %+v", l.config)
	}
}
