// Package request performs single HTTP exchanges for the redemption
// protocol. Redirects are never followed by the transport: the protocol
// treats redirect targets as meaningful state, so callers opt into an
// explicit, bounded chase instead.
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("autoshift/request")

const (
	// DefaultTimeout bounds a single exchange unless overridden.
	DefaultTimeout = 5 * time.Second
	// DefaultMaxRedirects bounds a redirect chase. The chain length is
	// server-controlled, so it must not be open-ended.
	DefaultMaxRedirects = 10

	// politeness delay between chased redirects
	redirectDelay = 500 * time.Millisecond

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

var ErrTooManyRedirects = errors.New("too many redirects")

// NewClient builds a resty client with a fresh cookie jar, a browser
// user-agent and transport-level redirect following disabled.
func NewClient(baseUrl string) (*resty.Client, error) {
	client := resty.New()
	client.SetBaseURL(baseUrl)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}))

	return client, nil
}

// Options describes one exchange.
type Options struct {
	// GET, POST or HEAD
	Method string
	// absolute, or relative to the client's base url
	Url string
	// form body, POST only
	Body url.Values
	// extra headers on top of the client's defaults
	Header http.Header
	// zero means DefaultTimeout, negative means none
	Timeout time.Duration
	// chase 3xx responses (method switches to GET, only the Referer
	// header survives, 500ms politeness delay between hops)
	FollowRedirects bool
	// zero means DefaultMaxRedirects
	MaxRedirects int
}

// Result is the terminal state of one exchange. Exactly one Result is
// produced per Do call. When TimedOut is set the other fields must not
// be inspected.
type Result struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	// the url that produced the final response, after any chased redirects
	FinalUrl string
	// number of redirects chased
	Redirects int
	TimedOut  bool
}

func (r Result) Location() string {
	return r.Header.Get("Location")
}

// Do performs the exchange described by opts on the given client.
// Transport failures return an error; a timeout additionally marks the
// result. HTTP error statuses are not errors, they are protocol state.
func Do(ctx context.Context, client *resty.Client, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("request:%s", opts.Method))
	defer span.End()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	method := opts.Method
	target := opts.Url
	header := cloneHeader(opts.Header)
	body := opts.Body

	var result Result
	for {
		res, err := send(ctx, client, method, target, header, body)
		if err != nil {
			result.TimedOut = timedOut(ctx, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "exchange failed")
			return result, err
		}

		result.StatusCode = res.StatusCode()
		result.Body = res.Body()
		result.Header = res.Header()
		result.FinalUrl = res.Request.URL

		location := result.Location()
		if !opts.FollowRedirects || !isRedirect(result.StatusCode) || location == "" {
			return result, nil
		}
		if result.Redirects >= maxRedirects {
			span.SetStatus(codes.Error, ErrTooManyRedirects.Error())
			return result, ErrTooManyRedirects
		}

		next, err := resolveUrl(res.Request.URL, location)
		if err != nil {
			return result, err
		}

		slog.DebugContext(ctx, "auto redirect", "to", next)

		// only the Referer header survives a hop, the method
		// always degrades to GET
		method = http.MethodGet
		body = nil
		referer := header.Get("Referer")
		header = http.Header{}
		if referer != "" {
			header.Set("Referer", referer)
		}
		target = next
		result.Redirects++

		if err := sleep(ctx, redirectDelay); err != nil {
			result.TimedOut = timedOut(ctx, err)
			return result, err
		}
	}
}

func send(ctx context.Context, client *resty.Client, method, target string, header http.Header, body url.Values) (*resty.Response, error) {
	req := client.R().SetContext(ctx)
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Set(k, v)
		}
	}

	switch method {
	case http.MethodGet:
		return req.Get(target)
	case http.MethodHead:
		return req.Head(target)
	case http.MethodPost:
		return req.
			SetHeader("Content-Type", "application/x-www-form-urlencoded").
			SetBody(body.Encode()).
			Post(target)
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "deadline exceeded")
}

func resolveUrl(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cloneHeader(h http.Header) http.Header {
	out := http.Header{}
	for k, vals := range h {
		for _, v := range vals {
			out.Add(k, v)
		}
	}
	return out
}
