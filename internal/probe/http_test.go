package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPHealthyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res, err := HTTP(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatalf("HTTP: %v", err)
	}
	if !res.Reachable || !res.StatusOK || res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHTTPUnhealthyStatusIsReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res, err := HTTP(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatalf("HTTP: %v", err)
	}
	if !res.Reachable {
		t.Fatal("server answered, expected reachable")
	}
	if res.StatusOK {
		t.Fatal("503 must not count as healthy")
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status code %d", res.StatusCode)
	}
}

func TestHTTPConnectionFailureIsNotAnError(t *testing.T) {
	res, err := HTTP(context.Background(), "http://127.0.0.1:59998/health", 500*time.Millisecond)
	if err != nil {
		t.Fatalf("refused connection must not be an error: %v", err)
	}
	if res.Reachable {
		t.Fatal("expected unreachable")
	}
}

func TestHTTPInvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/health", "localhost:8080"} {
		if _, err := HTTP(context.Background(), raw, time.Second); err == nil {
			t.Fatalf("url %q accepted", raw)
		}
	}
}
