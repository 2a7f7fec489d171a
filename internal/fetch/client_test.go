package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GrahamLi/TDDC/internal/model"
)

const validBody = `{
	"data": [
		{"securityHolderLevel": "1", "holderCount": "10", "shareCount": "100"},
		{"securityHolderLevel": "2", "holderCount": "5", "shareCount": "900"},
		{"securityHolderLevel": "17", "holderCount": "15", "shareCount": "1000"}
	]
}`

// testClient builds a client against the server with fast retries and
// no rate gate unless the test sets one.
func testClient(t *testing.T, serverURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:        serverURL,
		Timeout:        5 * time.Second,
		MaxConcurrency: 4,
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		MinInterval:    0,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestFetchSuccess(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if got := r.URL.Query().Get("stockNo"); got != "2330" {
			t.Errorf("stockNo = %q, want %q", got, "2330")
		}
		if got := r.URL.Query().Get("scaDate"); got != "20240105" {
			t.Errorf("scaDate = %q, want %q", got, "20240105")
		}
		fmt.Fprint(w, validBody)
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)

	snap, err := c.Fetch(context.Background(), "2330", model.NewDate(2024, time.January, 5))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if snap.TotalShares != 1000 || len(snap.Brackets) != 2 {
		t.Errorf("snapshot = %+v, want total 1000 with 2 brackets", snap)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Two transient failures, then success: exactly 3 attempts.
		if requests.Add(1) <= 2 {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, validBody)
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)

	snap, err := c.Fetch(context.Background(), "2330", model.NewDate(2024, time.January, 5))
	if err != nil {
		t.Fatalf("Fetch failed after transient errors: %v", err)
	}
	if snap == nil {
		t.Fatal("Fetch returned nil snapshot")
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want exactly 3", got)
	}
}

func TestFetchExhaustsAttemptBudget(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := testClient(t, server.URL, func(cfg *Config) { cfg.MaxAttempts = 2 })

	_, err := c.Fetch(context.Background(), "2330", model.NewDate(2024, time.January, 5))
	if !IsTransient(err) {
		t.Fatalf("Fetch = %v, want transient", err)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestFetchPermanentNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)

	_, err := c.Fetch(context.Background(), "2330", model.NewDate(2024, time.January, 5))
	if !IsPermanent(err) {
		t.Fatalf("Fetch = %v, want permanent", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden {
		t.Errorf("Fetch = %v, want wrapped 403 HTTPError", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1 (no retry on permanent)", got)
	}
}

func TestFetchNoDataNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, `{"responseMsg": "查無資料", "data": []}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)

	_, err := c.Fetch(context.Background(), "2330", model.NewDate(2024, time.January, 6))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("Fetch = %v, want ErrNoData", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1 (no retry on NoData)", got)
	}
}

func TestFetchEmptySecurityIsPermanent(t *testing.T) {
	c := testClient(t, "http://unreachable.invalid", nil)

	_, err := c.Fetch(context.Background(), "", model.NewDate(2024, time.January, 5))
	if !IsPermanent(err) {
		t.Errorf("Fetch with empty security = %v, want permanent", err)
	}
}

func TestFetchMinIntervalSpacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, validBody)
	}))
	defer server.Close()

	const interval = 50 * time.Millisecond
	c := testClient(t, server.URL, func(cfg *Config) { cfg.MinInterval = interval })

	ctx := context.Background()
	date := model.NewDate(2024, time.January, 5)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Fetch(ctx, "2330", date.AddDays(7*i)); err != nil {
			t.Fatalf("Fetch %d failed: %v", i, err)
		}
	}
	// First request is free; two more tokens cost one interval each.
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Errorf("3 fetches took %v, want at least %v", elapsed, 2*interval)
	}
}

func TestFetchDeadlineAtRateGate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, validBody)
	}))
	defer server.Close()

	c := testClient(t, server.URL, func(cfg *Config) { cfg.MinInterval = 5 * time.Second })

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// The first token is free.
	if _, err := c.Fetch(ctx, "2330", model.NewDate(2024, time.January, 5)); err != nil {
		t.Fatalf("first Fetch failed: %v", err)
	}

	// The next token arrives long after the deadline; the gate must
	// surface the deadline, not a transient failure.
	_, err := c.Fetch(ctx, "2330", model.NewDate(2024, time.January, 12))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Fetch = %v, want context.DeadlineExceeded", err)
	}
	if IsTransient(err) {
		t.Error("unmeetable rate-gate wait classified as transient")
	}
}

func TestFetchHonorsCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	c := testClient(t, server.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "2330", model.NewDate(2024, time.January, 5))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch = %v, want context.DeadlineExceeded", err)
	}
}

func TestTLSConfigPolicies(t *testing.T) {
	t.Run("always", func(t *testing.T) {
		cfg, err := tlsConfig(VerifyAlways, "")
		if err != nil || cfg != nil {
			t.Errorf("tlsConfig(always) = %v, %v; want nil, nil", cfg, err)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg, err := tlsConfig(VerifyDisabled, "")
		if err != nil {
			t.Fatalf("tlsConfig(disabled) failed: %v", err)
		}
		if !cfg.InsecureSkipVerify {
			t.Error("tlsConfig(disabled) did not set InsecureSkipVerify")
		}
	})

	t.Run("ca-path requires path", func(t *testing.T) {
		if _, err := tlsConfig(VerifyCAPath, ""); err == nil {
			t.Error("tlsConfig(ca-path) accepted empty path")
		}
	})

	t.Run("unknown policy", func(t *testing.T) {
		if _, err := tlsConfig("sometimes", ""); err == nil {
			t.Error("tlsConfig accepted unknown policy")
		}
	})
}
