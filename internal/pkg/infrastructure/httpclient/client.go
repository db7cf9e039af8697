package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
)

//TokenSource provides the bearer token attached to every request. An empty token means anonymous.
type TokenSource interface {
	Token() string
}

//TokenSourceFunc adapts a plain function to a TokenSource
type TokenSourceFunc func() string

//Token returns f()
func (f TokenSourceFunc) Token() string { return f() }

//RequestIDHeader carries a per-request correlation id
const RequestIDHeader = "X-Request-ID"

const maxResponseBytes = 10 << 20

//Client is the single configured HTTP client used to talk to the farm management API
type Client struct {
	baseURL       string
	impl          *http.Client
	uploadTimeout time.Duration
	tokens        TokenSource
	log           logging.Logger
}

//Option customizes a Client
type Option func(*Client)

//WithTokenSource makes the client attach a bearer token from ts to every request
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

//WithUploadTimeout sets the guard applied to multipart uploads
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.uploadTimeout = d
		}
	}
}

//WithMetrics instruments the transport with request counters and latency histograms
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.impl.Transport = m.Instrument(c.impl.Transport)
		}
	}
}

//WithTransport replaces the underlying round tripper, mostly useful in tests
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.impl.Transport = rt
	}
}

//New creates a client for the API rooted at baseURL
func New(baseURL string, timeout time.Duration, log logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		impl:          &http.Client{Timeout: timeout, Transport: http.DefaultTransport},
		uploadTimeout: 60 * time.Second,
		log:           log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

//BaseURL returns the normalized base url of the API
func (c *Client) BaseURL() string {
	return c.baseURL
}

//Get issues a GET request and decodes the JSON response into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

//Post issues a POST request with body encoded as JSON
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

//Put issues a PUT request with body encoded as JSON
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

//Delete issues a DELETE request, decoding the response into out when it is not nil
func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

//Do performs one request against the API. Errors are returned unchanged to the caller,
//nothing is retried.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var reader io.Reader
	contentType := ""

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	return c.send(ctx, method, path, query, reader, contentType, out)
}

//Upload sends a single file as multipart/form-data. The request is aborted when it takes
//longer than the configured upload timeout.
func (c *Client) Upload(ctx context.Context, path, field, filename, fileContentType string, data []byte, out interface{}) error {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(filename)))
	header.Set("Content-Type", fileContentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("POST %s: create multipart: %w", path, err)
	}
	if _, err = part.Write(data); err != nil {
		return fmt.Errorf("POST %s: write multipart: %w", path, err)
	}
	if err = writer.Close(); err != nil {
		return fmt.Errorf("POST %s: close multipart: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	return c.send(ctx, http.MethodPost, path, nil, buf, writer.FormDataContentType(), out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out interface{}) error {
	target := c.resolve(path, query)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	log := c.log.WithField("requestId", requestID)
	start := time.Now()

	resp, err := c.impl.Do(req)
	if err != nil {
		log.Debugf("%s %s failed after %s: %s", method, path, time.Since(start), err.Error())
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	log.Debugf("%s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Method: method, Path: path, StatusCode: resp.StatusCode, Body: respBody}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err = json.Unmarshal(respBody, out); err != nil {
		return &DecodeError{Method: method, Path: path, Err: err}
	}

	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	target := c.baseURL + "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
