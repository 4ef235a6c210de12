package connector

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"wakesched/internal/constants"
)

// RemoteServiceConnector posts to callback urls, retrying gateway errors and transport failures
// with exponential backoff.
type RemoteServiceConnector struct {
	client        *http.Client
	maxRetries    int
	retryInterval time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

func NewRemoteServiceConnector(timeout time.Duration, maxRetries int, retryInterval time.Duration) *RemoteServiceConnector {
	return &RemoteServiceConnector{
		client:        &http.Client{Timeout: timeout},
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		sleep:         sleepContext,
	}
}

// WaitTime is the pause before retry number attempt+1, counted from zero, capped at MaxConnectorWait.
func (c *RemoteServiceConnector) WaitTime(attempt int) time.Duration {
	if attempt >= 63 || c.retryInterval > constants.MaxConnectorWait>>attempt {
		return constants.MaxConnectorWait
	}
	return c.retryInterval << attempt
}

// Post sends an empty POST to url. The last response is returned once it is not retryable or the
// retry budget is spent; an error is returned only when the final attempt failed at transport level.
// The caller closes the response body.
func (c *RemoteServiceConnector) Post(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	var (
		resp    *http.Response
		lastErr error
		retries int
	)

	for {
		if retries > 0 {
			log.Printf("connector: post retry %d/%d to %s", retries, c.maxRetries, url)
			if err := c.sleep(ctx, c.WaitTime(retries-1)); err != nil {
				return nil, err
			}
		}

		resp, lastErr = c.do(ctx, url, headers)
		retry := lastErr != nil || isRetryable(resp.StatusCode)
		if lastErr != nil {
			log.Printf("connector: post to %s failed: %v", url, lastErr)
		}
		if !retry || retries >= c.maxRetries || ctx.Err() != nil {
			break
		}
		drain(resp)
		retries++
	}

	if lastErr != nil {
		log.Printf("connector: post to %s failed after %d retries: %v", url, retries, lastErr)
		return nil, lastErr
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("connector: post to %s failed after %d retries, returned HTTP %d", url, retries, resp.StatusCode)
	}
	return resp, nil
}

func (c *RemoteServiceConnector) do(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.client.Do(req)
}

func isRetryable(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func drain(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
