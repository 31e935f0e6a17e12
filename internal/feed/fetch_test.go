package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchOK(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed"+BodyResource {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("body-bytes"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL+"/feed", time.Second)
	b, err := f.Fetch(context.Background(), BodyResource)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(b) != "body-bytes" {
		t.Fatalf("unexpected body %q", b)
	}
}

// Resource names are plain suffixes: "/feed" + ".rss" is "/feed.rss", not a
// child path. A trailing slash on the base must not change that.
func TestFetchJoinsResourceAsSuffix(t *testing.T) {
	t.Parallel()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL+"/feed/", time.Second)
	if _, err := f.Fetch(context.Background(), SignatureResource); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "/feed"+SignatureResource {
		t.Fatalf("requested path %q, want %q", gotPath, "/feed"+SignatureResource)
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL+"/feed", time.Second)
	_, err := f.Fetch(context.Background(), SignatureResource)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Status != http.StatusNotModified {
		t.Fatalf("unexpected status %d", fe.Status)
	}
}

func TestFetchTransportFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	f := NewFetcher(srv.URL+"/feed", time.Second)
	_, err := f.Fetch(context.Background(), BodyResource)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Err == nil {
		t.Fatal("transport failure must carry the underlying error")
	}
}
