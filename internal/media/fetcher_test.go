package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/fanreel/api/internal/config"
)

func testFetcher(maxRetries int) *Fetcher {
	return NewFetcher(config.FetchConfig{
		Concurrency:    2,
		AttemptTimeout: 5,
		MaxRetries:     maxRetries,
	})
}

func TestFetchAll_DownloadsInSubmissionOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload for " + r.URL.Path))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := testFetcher(0)

	urls := []string{srv.URL + "/first", srv.URL + "/second", srv.URL + "/third"}
	paths, err := f.FetchAll(context.Background(), dir, urls)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 paths, got %d", len(paths))
	}

	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("reading clip %d: %v", i, err)
		}
		if len(data) == 0 {
			t.Errorf("clip %d is empty", i)
		}
	}
	// Ordinal naming keeps concat order equal to submission order.
	if got := string(mustRead(t, paths[1])); got != "payload for /second" {
		t.Errorf("path 1 holds %q, want the second clip", got)
	}
}

func TestFetchAll_RetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer srv.Close()

	f := testFetcher(3)
	paths, err := f.FetchAll(context.Background(), t.TempDir(), []string{srv.URL + "/clip"})
	if err != nil {
		t.Fatalf("FetchAll failed after retries: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if string(mustRead(t, paths[0])) != "finally" {
		t.Error("expected retried download content")
	}
}

func TestFetchAll_MissingClipIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := testFetcher(3)
	_, err := f.FetchAll(context.Background(), t.TempDir(), []string{srv.URL + "/gone"})
	if err == nil {
		t.Fatal("expected error for missing clip")
	}

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %T: %v", err, err)
	}
	// 4xx is the server's final answer; retrying cannot help.
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly 1 attempt for 404, got %d", got)
	}
}

func TestFetchAll_EmptyBodyIsInputError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := testFetcher(0)
	_, err := f.FetchAll(context.Background(), t.TempDir(), []string{srv.URL + "/empty"})

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError for empty body, got %v", err)
	}
}

func TestFetchAll_OneFailureFailsBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := testFetcher(0)
	_, err := f.FetchAll(context.Background(), t.TempDir(), []string{
		srv.URL + "/good",
		srv.URL + "/bad",
		srv.URL + "/good",
	})
	if err == nil {
		t.Fatal("expected batch failure when one clip is unavailable")
	}

	// The reported cause is the unavailable input, not the
	// cancellation it triggered on the siblings.
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestFetchAll_NoURLs(t *testing.T) {
	f := testFetcher(0)
	if _, err := f.FetchAll(context.Background(), t.TempDir(), nil); err == nil {
		t.Fatal("expected error for empty clip list")
	}
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return data
}
