package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "hubctl"
	maxResponseBody  = 4 << 20
)

// Logger is the logging capability the flow needs. *logging.Logger satisfies it.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...zap.Field)
	Info(ctx context.Context, msg string, fields ...zap.Field)
	Warn(ctx context.Context, msg string, fields ...zap.Field)
	Error(ctx context.Context, msg string, fields ...zap.Field)
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...zap.Field) {}
func (nopLogger) Info(context.Context, string, ...zap.Field)  {}
func (nopLogger) Warn(context.Context, string, ...zap.Field)  {}
func (nopLogger) Error(context.Context, string, ...zap.Field) {}

// Recorder observes remote calls. outcome is "ok" or a Kind name.
type Recorder interface {
	ObserveRemoteCall(op, outcome string, d time.Duration)
}

// Client performs the control-plane and deployment calls. It holds no
// per-call state and is safe for concurrent use; all calls share one base
// transport and its connection pool.
type Client struct {
	base      http.RoundTripper
	timeout   time.Duration
	userAgent string
	recorder  Recorder
	log       Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTransport sets the base transport bearer auth is layered on.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) { c.base = rt }
}

// WithTimeout bounds every single call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// WithClientLogger sets the logger used for per-call debug lines.
func WithClientLogger(l Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient returns a Client using http.DefaultTransport unless overridden.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		base:      http.DefaultTransport,
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
		log:       nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request describes one authenticated JSON call.
type request struct {
	op      string
	method  string
	baseURL string
	path    string
	query   url.Values
	token   string
	header  http.Header
}

// authorized layers a static bearer token over the shared base transport.
// The per-call timeout is applied through the request context instead of
// http.Client.Timeout.
func (c *Client) authorized(token string) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.base,
		},
	}
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	start := time.Now()
	status, err := c.roundTrip(ctx, r, out)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	if c.recorder != nil {
		c.recorder.ObserveRemoteCall(r.op, outcome, elapsed)
	}
	c.log.Debug(ctx, "remote call",
		zap.String("op", r.op),
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", status),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
	)
	return err
}

func (c *Client) roundTrip(ctx context.Context, r request, out any) (int, error) {
	target, err := url.JoinPath(r.baseURL, r.path)
	if err != nil {
		return 0, &Error{Op: r.op, Err: fmt.Errorf("invalid base url %q: %w", r.baseURL, err)}
	}
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, r.method, target, nil)
	if err != nil {
		return 0, &Error{Op: r.op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.authorized(r.token).Do(req)
	if err != nil {
		return 0, c.classifyTransport(ctx, r.op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, c.classifyTransport(ctx, r.op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, classifyStatus(r.op, resp.StatusCode, body)
	}
	if out == nil || r.method == http.MethodHead {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, &Error{
			Kind:   KindServer,
			Op:     r.op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("cannot decode response: %w", err),
		}
	}
	return resp.StatusCode, nil
}

// classifyTransport handles failures where no HTTP status was obtained.
// Only the caller's context makes a call cancelled; running out of the
// per-call timeout is a missing response like any other network failure.
func (c *Client) classifyTransport(ctx context.Context, op string, err error) *Error {
	if ctx.Err() != nil {
		return &Error{Kind: KindCancelled, Op: op, Err: ctx.Err()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("no response within %s: %w", c.timeout, err)
	}
	return &Error{Kind: KindOffline, Op: op, Err: err}
}

// classifyStatus maps a non-2xx status: 401 is an authentication failure,
// 5xx a server error, anything else means the resource is not there.
func classifyStatus(op string, status int, body []byte) *Error {
	detail := fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindUnauthenticated, Op: op, Status: status, Err: detail}
	case status >= 500:
		return &Error{Kind: KindServer, Op: op, Status: status, Err: detail}
	default:
		return &Error{Kind: KindNotFound, Op: op, Status: status, Err: detail}
	}
}
