package tool

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	DefaultTimeout = 30 * time.Second

	sharedTransport *http.Transport
	plainClient     *http.Client
	retryClient     *retryablehttp.Client
)

func init() {
	InitHTTPClients(50, 10)
}

// InitHTTPClients (re)builds the shared pooled transport and the two clients
// riding on it. The plain client serves POST (SOAP actions are never
// auto-retried); the retry client serves idempotent GET/HEAD with bounded
// backoff on 429/5xx and transport errors.
func InitHTTPClients(maxIdle, maxPerHost int) {
	if maxIdle <= 0 {
		maxIdle = 50
	}
	if maxPerHost <= 0 {
		maxPerHost = 10
	}
	sharedTransport = &http.Transport{
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxPerHost,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}

	plainClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: sharedTransport,
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: sharedTransport,
	}
	rc.RetryMax = 3
	rc.RetryWaitMin = 300 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.Logger = nil
	retryClient = rc
}

// GetHTTPClient returns the plain pooled client. Use for POST/SOAP.
func GetHTTPClient() *http.Client {
	return plainClient
}

// HTTPGet performs a GET with automatic retry and a per-call timeout.
func HTTPGet(url string, timeout time.Duration) (*http.Response, error) {
	return retryRequest(http.MethodGet, url, timeout)
}

// HTTPHead performs a HEAD with automatic retry and a per-call timeout.
// Redirects are followed by the underlying client.
func HTTPHead(url string, timeout time.Duration) (*http.Response, error) {
	return retryRequest(http.MethodHead, url, timeout)
}

func retryRequest(method, url string, timeout time.Duration) (*http.Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := retryClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	// The deadline covers the body read too; closing the body releases the timer.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
