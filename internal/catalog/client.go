// Package catalog implements the read-only client for the remote catalog
// endpoint that serves the storefront's single product.
package catalog

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/once-storefront/internal/domain/product"
)

const (
	maxBodySize      = 4 << 20
	maxErrorBodySize = 1 << 10
)

// Target identifies the one product the storefront shows: the catalog base
// URL, the product details path and the locale/store query codes.
type Target struct {
	BaseURL string
	Path    string
	Lang    string
	Store   string
}

// URL builds the absolute request URL for the target.
func (t Target) URL() (*url.URL, error) {
	base, err := url.Parse(t.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("base url %q: scheme must be http or https", t.BaseURL)
	}
	if base.Host == "" {
		return nil, errors.Errorf("base url %q: missing host", t.BaseURL)
	}
	if strings.TrimSpace(t.Path) == "" {
		return nil, errors.New("product path is required")
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	u := base.ResolveReference(&url.URL{Path: strings.TrimPrefix(t.Path, "/")})
	q := u.Query()
	if t.Lang != "" {
		q.Set("lang", t.Lang)
	}
	if t.Store != "" {
		q.Set("store", t.Store)
	}
	u.RawQuery = q.Encode()
	return u, nil
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout sets the overall request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// WithTracerProvider sets the tracer provider for client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cl *Client) { cl.tp = tp }
}

// WithMeterProvider sets the meter provider used by the HTTP transport.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cl *Client) { cl.mp = mp }
}

// Client fetches the configured product from the catalog. It does not retry
// or cache: every call issues a new request.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	tp      trace.TracerProvider
	mp      metric.MeterProvider
	tracer  trace.Tracer
}

// New validates target and returns a Client for it.
func New(target Target, opts ...Option) (*Client, error) {
	u, err := target.URL()
	if err != nil {
		return nil, errors.Wrap(err, "catalog target")
	}

	c := &Client{url: u.String()}
	for _, o := range opts {
		o(c)
	}
	if c.tp == nil {
		c.tp = otel.GetTracerProvider()
	}
	if c.mp == nil {
		c.mp = otel.GetMeterProvider()
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout: c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(c.tp),
				otelhttp.WithMeterProvider(c.mp),
			),
		}
	}
	c.tracer = c.tp.Tracer("github.com/xenking/once-storefront/internal/catalog")
	return c, nil
}

// URL returns the request URL the client is bound to.
func (c *Client) URL() string {
	return c.url
}

// FetchProduct requests the product details and decodes the response
// envelope. A decoded envelope is returned whatever its status says;
// interpreting it is up to the caller.
//
// Errors match ErrNetwork, ErrHTTPStatus or ErrDecode.
func (c *Client) FetchProduct(ctx context.Context) (env product.Envelope, rerr error) {
	ctx, span := c.tracer.Start(ctx, "catalog.FetchProduct",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("catalog.url", c.url)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		} else {
			span.SetAttributes(
				attribute.Int("catalog.status", env.Status),
				attribute.Bool("catalog.has_data", env.Data != nil),
			)
		}
		span.End()
	}()

	lg := zctx.From(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return product.Envelope{}, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return product.Envelope{}, &NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return product.Envelope{}, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return product.Envelope{}, &NetworkError{Err: errors.Wrap(err, "read body")}
	}
	if len(body) > maxBodySize {
		return product.Envelope{}, &DecodeError{Err: errors.Errorf("body exceeds %d bytes", maxBodySize)}
	}

	env, err = product.DecodeEnvelope(body)
	if err != nil {
		return product.Envelope{}, &DecodeError{Err: err}
	}

	lg.Debug("Catalog response",
		zap.Int("status", env.Status),
		zap.String("message", env.Message),
		zap.Bool("has_data", env.Data != nil),
	)
	return env, nil
}
