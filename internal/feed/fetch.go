package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FetchError is any failure to obtain a remote resource: transport errors
// and non-200 statuses alike. There are no retries within a run; the next
// scheduled run is the retry mechanism.
type FetchError struct {
	Resource string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.Resource, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves named resources from the fixed base URL.
type Fetcher struct {
	baseURL string
	client  *http.Client
}

func NewFetcher(baseURL string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch performs a single GET of baseURL + name. Only a 200 response is
// acceptable.
func (f *Fetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	url := f.baseURL + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Resource: name, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Resource: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Resource: name, Status: resp.StatusCode}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Resource: name, Err: err}
	}
	return b, nil
}
