package jwks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxDocumentSize bounds how much of a keys response is read.
const maxDocumentSize = 1 << 20

// Fetcher retrieves the raw bytes served at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// HTTPFetcher fetches documents with a single GET request. A nil Client
// means http.DefaultClient. Timeouts are the client's responsibility.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", ErrNetwork, url, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrNetwork, url, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxDocumentSize))
		return nil, fmt.Errorf("%w: GET %s: unexpected status %d", ErrNetwork, url, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrNetwork, url, err)
	}
	return body, nil
}

// URL joins issuer and endpoint without any normalization.
func URL(issuer, endpoint string) string {
	return issuer + endpoint
}

// Fetch retrieves and decodes the key set published at issuer+endpoint.
// A nil Fetcher uses HTTPFetcher with http.DefaultClient.
func Fetch(ctx context.Context, f Fetcher, issuer, endpoint string) (*KeySet, error) {
	if f == nil {
		f = HTTPFetcher{}
	}
	body, err := f.Fetch(ctx, URL(issuer, endpoint))
	if err != nil {
		if errors.Is(err, ErrNetwork) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return ParseKeySet(body)
}
