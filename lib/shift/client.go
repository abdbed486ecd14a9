// Package shift drives the SHiFT website's login and code redemption
// workflow. The site exposes no API: everything happens through
// server-rendered pages, session cookies, CSRF tokens and
// redirect-driven status polling.
package shift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/Fabbi/autoshift/lib/request"
	"github.com/Fabbi/autoshift/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("autoshift/shift")

const DefaultBaseUrl = "https://shift.gearboxsoftware.com"

// the cookie that identifies a logged-in session. its presence after a
// login attempt is the ground truth, the site returns 200 either way.
const sessionCookieName = "si"

const (
	homePath          = "/home"
	sessionsPath      = "/sessions"
	accountPath       = "/account"
	logoutPath        = "/logout"
	newRedemptionPath = "/code_redemptions/new"
	redemptionPath    = "/code_redemptions"
	offerCodesPath    = "/entitlement_offer_codes"
)

var (
	ErrLoginFailed    = errors.New("failed to login, are your credentials correct?")
	ErrLoginCancelled = errors.New("login cancelled")
)

type State int

const (
	LoggedOut State = iota
	LoggingIn
	LoggedIn
)

type Credentials struct {
	Username string
	Password string
}

// CredentialPrompt asks the operator for credentials when no saved
// session can be restored. Implementations return ErrLoginCancelled
// when the operator declines; the client treats that like a failed
// login.
type CredentialPrompt interface {
	RequestCredentials(ctx context.Context) (Credentials, error)
}

type Options struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// where the session blob lives between runs
	SessionFile string
	Prompt      CredentialPrompt
	// per-exchange timeout, zero means request.DefaultTimeout
	Timeout time.Duration
	// optional request/response dump sink for debugging
	HttpDump restyutil.InstrumentOutput
}

// Client owns one logged-in browser session against the SHiFT site.
// The redemption protocol is turn-based, so all calls on one Client
// must be serialized by the owner; independent Clients (separate
// accounts) run in parallel freely.
type Client struct {
	baseUrl     *url.URL
	http        *resty.Client
	sessionFile string
	prompt      CredentialPrompt
	timeout     time.Duration
	pollDelay   time.Duration

	state    State
	username string
}

func NewClient(opts Options) (*Client, error) {
	rawBase := opts.BaseUrl
	if rawBase == "" {
		rawBase = DefaultBaseUrl
	}
	baseUrl, err := url.Parse(rawBase)
	if err != nil {
		return nil, err
	}

	client, err := request.NewClient(rawBase)
	if err != nil {
		return nil, err
	}
	restyutil.InstrumentClient(client, tracer, opts.HttpDump)

	return &Client{
		baseUrl:     baseUrl,
		http:        client,
		sessionFile: opts.SessionFile,
		prompt:      opts.Prompt,
		timeout:     opts.Timeout,
		pollDelay:   defaultPollDelay,
		state:       LoggedOut,
	}, nil
}

func (c *Client) State() State { return c.state }

func (c *Client) LoggedIn() bool { return c.state == LoggedIn }

func (c *Client) Username() string { return c.username }

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return c.baseUrl.ResolveReference(ref).String()
}

func (c *Client) do(ctx context.Context, opts request.Options) (request.Result, error) {
	if opts.Timeout == 0 {
		opts.Timeout = c.timeout
	}
	return request.Do(ctx, c.http, opts)
}

// Login restores the saved session if one exists and still validates,
// otherwise it asks the configured prompt for credentials and performs
// a fresh login. Exactly one success/failure result is reported, the
// client never retries on its own.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	if c.restoreSession(ctx) {
		c.state = LoggedIn
		slog.InfoContext(ctx, "restored saved session", "user", c.username)
		return nil
	}

	// the stored blob is stale, start over
	c.discardSession(ctx)

	if c.prompt == nil {
		span.SetStatus(codes.Error, "no credential prompt configured")
		return ErrLoginCancelled
	}
	creds, err := c.prompt.RequestCredentials(ctx)
	if err != nil {
		c.state = LoggedOut
		span.SetStatus(codes.Error, "credential prompt declined")
		return err
	}

	return c.LoginWithCredentials(ctx, creds.Username, creds.Password)
}

// restoreSession loads the saved blob and probes an
// authenticated-only endpoint to check the cookie still works.
func (c *Client) restoreSession(ctx context.Context) bool {
	rec, err := readSessionFile(c.sessionFile)
	if err != nil {
		return false
	}

	c.http.GetClient().Jar.SetCookies(c.baseUrl, parseSavedCookies(rec.Cookie))

	res, err := c.do(ctx, request.Options{
		Method: http.MethodHead,
		Url:    accountPath,
	})
	if err != nil || res.StatusCode != http.StatusOK {
		return false
	}

	c.username = rec.Username
	return true
}

// LoginWithCredentials scrapes the login form, injects the credentials
// into its hidden fields and posts it. Whether the session cookie can
// be persisted afterwards decides success, not the HTTP status.
func (c *Client) LoginWithCredentials(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:LoginWithCredentials")
	defer span.End()

	c.state = LoggingIn

	res, err := c.do(ctx, request.Options{
		Method: http.MethodGet,
		Url:    homePath,
	})
	if err != nil {
		c.state = LoggedOut
		span.SetStatus(codes.Error, "failed to fetch login page")
		return fmt.Errorf("fetch login page: %w", err)
	}

	doc, err := parseDocument(res.Body)
	if err != nil {
		c.state = LoggedOut
		return err
	}
	form, ok := loginForm(doc)
	if !ok {
		c.state = LoggedOut
		span.SetStatus(codes.Error, "no login form on page")
		return fmt.Errorf("%w: could not find the login form", ErrLoginFailed)
	}

	form.Set("user[email]", username)
	form.Set("user[password]", password)

	header := http.Header{}
	header.Set("Referer", c.resolve(homePath))

	_, err = c.do(ctx, request.Options{
		Method:          http.MethodPost,
		Url:             sessionsPath,
		Body:            form,
		Header:          header,
		FollowRedirects: true,
	})
	if err != nil {
		c.state = LoggedOut
		span.SetStatus(codes.Error, "login request failed")
		return fmt.Errorf("post login form: %w", err)
	}

	c.username = username
	if !c.saveSession(ctx) {
		c.state = LoggedOut
		c.username = ""
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		return ErrLoginFailed
	}

	c.state = LoggedIn
	slog.InfoContext(ctx, "login successful", "user", username)
	return nil
}

// saveSession persists the session cookie and username. Reports false
// when no session cookie exists, which means the login did not take.
func (c *Client) saveSession(ctx context.Context) bool {
	for _, cookie := range c.http.GetClient().Jar.Cookies(c.baseUrl) {
		if cookie.Name != sessionCookieName {
			continue
		}
		err := writeSessionFile(c.sessionFile, sessionRecord{
			Cookie:   []byte(cookie.String()),
			Username: c.username,
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to write session file",
				"path", c.sessionFile, "err", err)
			return false
		}
		return true
	}
	return false
}

// discardSession drops the stored blob and all live cookies for the
// base url.
func (c *Client) discardSession(ctx context.Context) {
	err := removeSessionFile(c.sessionFile)
	if err != nil {
		slog.WarnContext(ctx, "failed to remove session file",
			"path", c.sessionFile, "err", err)
	}
	jar, err := cookiejar.New(nil)
	if err == nil {
		c.http.SetCookieJar(jar)
	}
}

// Logout invalidates the session on the site and locally.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Logout")
	defer span.End()

	_, err := c.do(ctx, request.Options{
		Method: http.MethodGet,
		Url:    logoutPath,
	})

	c.discardSession(ctx)
	c.state = LoggedOut
	c.username = ""
	return err
}
