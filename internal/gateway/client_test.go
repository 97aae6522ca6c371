package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetTransferStatus_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/transfers/wd-123" {
			t.Fatalf("path = %s, want /api/transfers/wd-123", r.URL.Path)
		}

		resp := OperationStatus{
			ID:     "wd-123",
			Status: StatusComplete,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retryAfter, err := client.GetTransferStatus(ctx, "wd-123")
	if err != nil {
		t.Fatalf("GetTransferStatus error: %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", code, http.StatusOK)
	}
	if retryAfter != 0 {
		t.Fatalf("retryAfter = %v, want 0", retryAfter)
	}
	if res == nil || res.ID != "wd-123" || res.Status != StatusComplete {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestGetSessionStatus_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retryAfter, err := client.GetSessionStatus(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSessionStatus error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil response for 429, got %+v", res)
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if retryAfter < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", retryAfter)
	}
}

func TestGetTransferStatus_UnknownOperation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retryAfter, err := client.GetTransferStatus(ctx, "wd-unknown")
	if err != nil {
		t.Fatalf("GetTransferStatus error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil response for 204, got %+v", res)
	}
	if code != http.StatusNoContent {
		t.Fatalf("status code = %d, want %d", code, http.StatusNoContent)
	}
	if retryAfter != 0 {
		t.Fatalf("retryAfter = %v, want 0", retryAfter)
	}
}

func TestGetTransferStatus_NotConfigured(t *testing.T) {
	client := &Client{}

	_, _, _, err := client.GetTransferStatus(context.Background(), "wd-1")
	if err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}
