package shift

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Fabbi/autoshift/lib/keydb"
	"github.com/Fabbi/autoshift/lib/request"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// cap on status-widget polls before handing the fallback url back
	// to the caller
	maxStatusPolls = 5
	// cap on chased submission redirects; the chain is
	// server-controlled
	maxSubmitHops = 10

	defaultPollDelay = 500 * time.Millisecond
)

func xhrHeader(token string) http.Header {
	h := http.Header{}
	h.Set("x-csrf-token", token)
	h.Set("x-requested-with", "XMLHttpRequest")
	return h
}

// Redeem runs one code through the whole redemption workflow: CSRF
// token acquisition, platform form discovery, submission and status
// resolution. Exactly one Outcome is returned per call. On
// StatusSlowdown or StatusTryLater the caller must back off before
// calling again.
func (c *Client) Redeem(ctx context.Context, code *keydb.Code) Outcome {
	ctx, span := tracer.Start(ctx, "client:Redeem")
	defer span.End()
	span.SetAttributes(
		attribute.String("code", code.Code),
		attribute.String("platform", code.Platform.String()),
		attribute.String("game", code.Game.String()),
	)

	out := c.redeem(ctx, code)

	span.SetAttributes(attribute.String("outcome", out.Status.String()))
	if out.Status == StatusUnknown {
		span.SetStatus(codes.Error, out.Message)
	}
	return out
}

func (c *Client) redeem(ctx context.Context, code *keydb.Code) Outcome {
	token, out := c.fetchToken(ctx)
	if out.Status != StatusNone {
		return out
	}

	payload, out := c.fetchRedemptionForm(ctx, token, code)
	if out.Status != StatusNone {
		return out
	}

	return c.submit(ctx, token, payload)
}

// fetchToken grabs a fresh CSRF token off the "new redemption" page.
// Failure is terminal for the whole call.
func (c *Client) fetchToken(ctx context.Context) (string, Outcome) {
	res, err := c.do(ctx, request.Options{
		Method: http.MethodGet,
		Url:    newRedemptionPath,
	})
	if err != nil {
		if res.TimedOut {
			return "", outcome(StatusUnknown, "timeout on token request")
		}
		return "", outcome(StatusUnknown, fmt.Sprintf("token request failed: %s", err))
	}

	doc, err := parseDocument(res.Body)
	if err != nil {
		return "", outcome(StatusUnknown, "token page is unreadable")
	}
	token := csrfToken(doc)
	if token == "" {
		return "", outcome(StatusUnknown, "could not retrieve csrf token")
	}
	return token, Outcome{}
}

// fetchRedemptionForm asks the site for the per-platform redemption
// forms of a code and picks out the payload matching the code's
// platform. The response's status and body double as the early
// classification of the code itself.
func (c *Client) fetchRedemptionForm(ctx context.Context, token string, code *keydb.Code) (url.Values, Outcome) {
	target := fmt.Sprintf("%s?code=%s", offerCodesPath, url.QueryEscape(code.Code))

	res, err := c.do(ctx, request.Options{
		Method:          http.MethodGet,
		Url:             target,
		Header:          xhrHeader(token),
		FollowRedirects: true,
	})
	if err != nil {
		if res.TimedOut {
			return nil, outcome(StatusUnknown, "timeout while fetching the redemption form")
		}
		return nil, outcome(StatusUnknown, fmt.Sprintf("form request failed: %s", err))
	}

	if res.StatusCode >= 500 {
		return nil, outcome(StatusInvalid, fmt.Sprintf("the code `%s` is invalid", code.Code))
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return nil, outcome(StatusSlowdown, "too many requests")
	}

	doc, err := parseDocument(res.Body)
	if err != nil {
		return nil, outcome(StatusUnknown, "form page is unreadable")
	}
	payload, ok := redemptionForm(doc, code.Platform)
	if ok {
		return payload, Outcome{}
	}

	body := strings.ToLower(string(res.Body))
	switch {
	case strings.Contains(body, "expired"):
		return nil, outcome(StatusExpired, "this code has expired")
	case strings.Contains(body, "not available"):
		return nil, outcome(StatusUnavailable,
			fmt.Sprintf("this code is not available for %s", code.Platform))
	case strings.Contains(body, "already been redeemed"):
		return nil, outcome(StatusRedeemed, "this code has already been redeemed")
	}

	msg := "no matching redemption form"
	if alert, found := alertText(doc); found {
		msg = alert
	}
	return nil, outcome(StatusUnknown, msg)
}

// submit posts the redemption payload, then resolves the final status
// through whatever mix of redirects, alert banners and status widgets
// the site answers with.
func (c *Client) submit(ctx context.Context, token string, payload url.Values) Outcome {
	header := http.Header{}
	header.Set("Referer", c.resolve(newRedemptionPath))

	method := http.MethodPost
	target := redemptionPath
	// whether any code_redemptions url was visited while chasing
	// redirects; decides the fallback classification below
	sawRedemption := false

	for hop := 0; hop < maxSubmitHops; hop++ {
		opts := request.Options{
			Method: method,
			Url:    target,
			Header: header,
		}
		if method == http.MethodPost {
			opts.Body = payload
		}

		res, err := c.do(ctx, opts)
		if err != nil {
			if res.TimedOut {
				return outcome(StatusUnknown, "timed out")
			}
			return outcome(StatusUnknown, fmt.Sprintf("submission failed: %s", err))
		}

		if res.StatusCode == http.StatusFound {
			location := res.Location()
			slog.DebugContext(ctx, "redemption redirect", "to", location)

			// an unauthenticated bounce back to the login page
			if strings.Contains(location, "home?redirect_to") {
				return outcome(StatusUnknown, "unexpected redirect, the session was likely lost")
			}
			if strings.Contains(location, "code_redemptions") {
				sawRedemption = true
			}

			target = c.resolve(location)
			method = http.MethodGet
			continue
		}

		out := c.resolveStatus(ctx, token, res)
		if out.Status != StatusNone {
			return out
		}

		// neither an alert nor a status widget: the site stopped
		// telling us anything useful
		if sawRedemption {
			return outcome(StatusRedeemed, "already redeemed")
		}
		return outcome(StatusTryLater,
			"to continue to redeem SHiFT codes, please launch a SHiFT-enabled title first")
	}

	return outcome(StatusUnknown, "redirected too many times")
}

// resolveStatus inspects one submission response: an alert banner is a
// terminal classification, a "checking status" widget needs polling.
// StatusNone means the page carried neither.
func (c *Client) resolveStatus(ctx context.Context, token string, res request.Result) Outcome {
	doc, err := parseDocument(res.Body)
	if err != nil {
		return outcome(StatusUnknown, "status page is unreadable")
	}

	if alert, ok := alertText(doc); ok {
		if status := classifyAlert(alert); status != StatusNone {
			slog.InfoContext(ctx, "redemption alert", "alert", alert)
			return Outcome{Status: status, Message: alert}
		}
	}

	widget, ok := findStatusWidget(doc)
	if !ok {
		return Outcome{}
	}

	// the widget page may carry its own token
	if t := csrfToken(doc); t != "" {
		token = t
	}
	return c.pollStatus(ctx, token, widget)
}

// pollStatus chases the widget's polling endpoint until it reports a
// result, at most maxStatusPolls times. An unresolved poll budget is
// not a failure: the fallback url is handed back for a later retry.
func (c *Client) pollStatus(ctx context.Context, token string, widget statusWidget) Outcome {
	lastMessage := ""
	for i := 0; i < maxStatusPolls; i++ {
		if widget.Text != lastMessage {
			// don't spam
			lastMessage = widget.Text
			slog.InfoContext(ctx, "checking redemption status", "status", widget.Text)
		}

		res, err := c.do(ctx, request.Options{
			Method: http.MethodGet,
			Url:    widget.Url,
			Header: xhrHeader(token),
		})
		if err == nil {
			if text, ok := pollText(res.Body); ok {
				lower := strings.ToLower(text)
				if strings.Contains(lower, "success") {
					return outcome(StatusSuccess, text)
				}
				if strings.Contains(lower, "failed") {
					return outcome(StatusRedeemed, text)
				}
			}
		}

		timer := time.NewTimer(c.pollDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return outcome(StatusUnknown, "timed out while polling redemption status")
		case <-timer.C:
		}
	}

	return Outcome{
		Status:      StatusRedirect,
		Message:     widget.Text,
		RedirectUrl: widget.FallbackUrl,
	}
}
