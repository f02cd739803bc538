// Package fetch performs the remote GET and HEAD calls of workflow steps.
// Every call carries the configured User-Agent and a bounded timeout;
// non-2xx responses are fetch failures and absent expected headers are
// missing-field failures.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/viant/stepflow/model/fault"
	"github.com/viant/stepflow/tracing"
)

// DefaultTimeout bounds a call when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// Client is an HTTP client for workflow steps.
type Client struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxBody   int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithUserAgent sets the identifying User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTimeout bounds each call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithMaxBody limits how many bytes Get reads.
func WithMaxBody(size int64) Option {
	return func(c *Client) {
		c.maxBody = size
	}
}

// New creates a client.
func New(options ...Option) *Client {
	c := &Client{client: http.DefaultClient, timeout: DefaultTimeout, maxBody: 8 << 20}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Get returns the response body of a GET.
func (c *Client) Get(ctx context.Context, URL string) ([]byte, error) {
	body, err := c.Open(ctx, URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, c.maxBody+1))
	if err != nil {
		return nil, fault.Fetch("read "+URL, err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, fault.Fetch("read "+URL, fmt.Errorf("body exceeds %d bytes", c.maxBody))
	}
	return data, nil
}

// Open issues a GET and returns the streaming body; closing it releases the
// call.
func (c *Client) Open(ctx context.Context, URL string) (io.ReadCloser, error) {
	response, cancel, err := c.do(ctx, http.MethodGet, URL)
	if err != nil {
		return nil, err
	}
	return &body{ReadCloser: response.Body, cancel: cancel}, nil
}

// Head returns the response headers of a HEAD.
func (c *Client) Head(ctx context.Context, URL string) (http.Header, error) {
	response, cancel, err := c.do(ctx, http.MethodHead, URL)
	if err != nil {
		return nil, err
	}
	defer cancel()
	response.Body.Close()
	return response.Header, nil
}

// LastModified returns the Last-Modified header of URL.
func (c *Client) LastModified(ctx context.Context, URL string) (time.Time, error) {
	header, err := c.Head(ctx, URL)
	if err != nil {
		return time.Time{}, err
	}
	value := header.Get("Last-Modified")
	if value == "" {
		return time.Time{}, fault.MissingField("head "+URL, "Last-Modified header")
	}
	modified, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}, fault.New(fault.KindMissingField, "head "+URL, fmt.Errorf("malformed Last-Modified %q: %w", value, err))
	}
	return modified.UTC(), nil
}

func (c *Client) do(ctx context.Context, method, URL string) (*http.Response, context.CancelFunc, error) {
	ctx, span := tracing.StartSpan(ctx, "fetch."+method, tracing.KindClient)
	defer span.End()
	span.WithAttributes(map[string]string{"http.method": method, "http.url": URL})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	request, err := http.NewRequestWithContext(ctx, method, URL, nil)
	if err != nil {
		cancel()
		span.SetStatus(err)
		return nil, nil, fault.Invalid(method+" "+URL, err)
	}
	if c.userAgent != "" {
		request.Header.Set("User-Agent", c.userAgent)
	}
	response, err := c.client.Do(request)
	if err != nil {
		cancel()
		span.SetStatus(err)
		return nil, nil, fault.Fetch(method+" "+URL, err)
	}
	span.SetStatusFromHTTPCode(response.StatusCode)
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		response.Body.Close()
		cancel()
		return nil, nil, fault.Fetch(method+" "+URL, fmt.Errorf("unexpected status %d", response.StatusCode))
	}
	return response, cancel, nil
}

type body struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *body) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
