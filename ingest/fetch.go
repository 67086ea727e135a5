// Package ingest downloads and parses the route and airport datasets and
// assembles them into immutable routedata snapshots.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/edgeoinnovations-resources/Flight/config"
)

type httpClient interface {
	Do(req *retryablehttp.Request) (*http.Response, error)
}

func retryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return false, ctx.Err()
			}
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
}

func newClient(cfg config.DatasetConfig) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.Logger = nil
	client.CheckRetry = retryPolicy()
	client.RetryWaitMin = time.Second
	client.HTTPClient.Timeout = cfg.FetchTimeout
	return client
}

// fetch downloads url and returns the response body.
func fetch(ctx context.Context, client httpClient, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}
