package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"orderbridge/internal/constants"
	"orderbridge/internal/privacy"

	"github.com/sirupsen/logrus"
)

// errHeaderTimeout is the cancellation cause used when no response headers
// arrive within the fetch timeout.
var errHeaderTimeout = errors.New("media fetch header timeout")

// FetchTimeoutError is returned when the upstream did not send response
// headers within the timeout.
type FetchTimeoutError struct {
	Timeout time.Duration
}

func (e *FetchTimeoutError) Error() string {
	return fmt.Sprintf("media fetch timed out after %s", e.Timeout)
}

// UpstreamError is returned when the media host answers with a non-2xx status
type UpstreamError struct {
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("media host responded %d %s", e.StatusCode, e.Status)
}

// NetworkError wraps DNS, dial and transport failures
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("media fetch network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// FetchResult is an upstream media response. Body is not buffered; the
// caller must close it. ContentLength is -1 when unknown.
type FetchResult struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	LastModified  string
	ETag          string
}

// FetcherConfig configures a Fetcher
type FetcherConfig struct {
	// AccessToken is sent as a bearer credential on every request
	AccessToken string
	Timeout     time.Duration
	UserAgent   string
	// HTTPClient overrides the default client. It must not set Timeout,
	// which would also bound the body read.
	HTTPClient *http.Client
}

// Fetcher performs authenticated GETs against media hosts. It does not
// validate hosts and never retries.
type Fetcher struct {
	client    *http.Client
	token     string
	timeout   time.Duration
	userAgent string
	logger    *logrus.Logger
}

func NewFetcher(cfg FetcherConfig, logger *logrus.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Duration(constants.DefaultMediaFetchTimeoutMs) * time.Millisecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = constants.MediaUserAgent
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Fetcher{
		client:    cfg.HTTPClient,
		token:     cfg.AccessToken,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// DefaultTimeout returns the timeout used when Fetch is called with zero
func (f *Fetcher) DefaultTimeout() time.Duration {
	return f.timeout
}

// Fetch issues the GET and returns once response headers have arrived.
// timeout bounds header arrival only; errors while reading the body are
// returned from Body.Read.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*FetchResult, error) {
	if timeout <= 0 {
		timeout = f.timeout
	}

	reqCtx, cancel := context.WithCancelCause(ctx)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel(nil)
		return nil, &NetworkError{Err: err}
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	req.Header.Set("User-Agent", f.userAgent)

	started := time.Now()
	timer := time.AfterFunc(timeout, func() { cancel(errHeaderTimeout) })

	resp, err := f.client.Do(req)
	timerStopped := timer.Stop()

	if err != nil {
		timedOut := errors.Is(context.Cause(reqCtx), errHeaderTimeout)
		cancel(nil)
		if timedOut {
			f.logger.WithFields(logrus.Fields{
				"url":     privacy.MaskURL(rawURL),
				"timeout": timeout.String(),
			}).Warn("Media fetch timed out waiting for headers")
			return nil, &FetchTimeoutError{Timeout: timeout}
		}
		return nil, &NetworkError{Err: err}
	}

	// The timer fired between Do returning and Stop; the body is unusable.
	if !timerStopped && errors.Is(context.Cause(reqCtx), errHeaderTimeout) {
		resp.Body.Close()
		cancel(nil)
		return nil, &FetchTimeoutError{Timeout: timeout}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel(nil)

		status := http.StatusText(resp.StatusCode)
		if status == "" {
			status = resp.Status
		}
		f.logger.WithFields(logrus.Fields{
			"url":         privacy.MaskURL(rawURL),
			"status_code": resp.StatusCode,
		}).Warn("Media host returned error status")
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Status: status}
	}

	f.logger.WithFields(logrus.Fields{
		"url":            privacy.MaskURL(rawURL),
		"content_type":   resp.Header.Get("Content-Type"),
		"content_length": resp.ContentLength,
		"header_ms":      time.Since(started).Milliseconds(),
	}).Debug("Media fetch headers received")

	return &FetchResult{
		Body:          &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		LastModified:  resp.Header.Get("Last-Modified"),
		ETag:          resp.Header.Get("ETag"),
	}, nil
}

// cancelOnClose releases the request context once the body is closed
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelCauseFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel(nil)
	return err
}
