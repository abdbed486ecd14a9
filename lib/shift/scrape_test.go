package shift

import (
	"testing"

	"github.com/Fabbi/autoshift/lib/keydb"

	"github.com/stretchr/testify/require"
)

const redemptionPage = `
<html>
<head><meta name="csrf-token" content="token-from-head"></head>
<body>
<form action="/code_redemptions" method="post">
	<input type="hidden" name="authenticity_token" value="form-token-steam">
	<input type="hidden" name="archway_code_redemption[code]" value="AAAAA-BBBBB-CCCCC-DDDDD-EEEEE">
	<input type="hidden" name="archway_code_redemption[check]" value="check-steam">
	<input type="hidden" name="archway_code_redemption[service]" value="steam">
	<input type="submit" value="Redeem for Steam">
</form>
<form action="/code_redemptions" method="post">
	<input type="hidden" name="authenticity_token" value="form-token-psn">
	<input type="hidden" name="archway_code_redemption[code]" value="AAAAA-BBBBB-CCCCC-DDDDD-EEEEE">
	<input type="hidden" name="archway_code_redemption[check]" value="check-psn">
	<input type="hidden" name="archway_code_redemption[service]" value="playstation">
	<input type="submit" value="Redeem for PlayStation">
</form>
</body>
</html>`

func TestCsrfToken(t *testing.T) {
	doc, err := parseDocument([]byte(redemptionPage))
	require.NoError(t, err)
	require.Equal(t, "token-from-head", csrfToken(doc))

	doc, err = parseDocument([]byte(`<html><head></head></html>`))
	require.NoError(t, err)
	require.Empty(t, csrfToken(doc))
}

func TestRedemptionForm(t *testing.T) {
	doc, err := parseDocument([]byte(redemptionPage))
	require.NoError(t, err)

	payload, ok := redemptionForm(doc, keydb.PlatformSteam)
	require.True(t, ok)
	require.Equal(t, "form-token-steam", payload.Get("authenticity_token"))
	require.Equal(t, "steam", payload.Get("archway_code_redemption[service]"))

	payload, ok = redemptionForm(doc, keydb.PlatformPSN)
	require.True(t, ok)
	require.Equal(t, "form-token-psn", payload.Get("authenticity_token"))

	_, ok = redemptionForm(doc, keydb.PlatformXbox)
	require.False(t, ok)
}

func TestLoginForm(t *testing.T) {
	page := `
	<form action="/sessions" method="post">
		<input type="hidden" name="authenticity_token" value="login-token">
		<input type="email" name="user[email]">
		<input type="password" name="user[password]">
	</form>`
	doc, err := parseDocument([]byte(page))
	require.NoError(t, err)

	form, ok := loginForm(doc)
	require.True(t, ok)
	require.Equal(t, "login-token", form.Get("authenticity_token"))
	require.Contains(t, form, "user[email]")

	doc, err = parseDocument([]byte(`<html><body>no forms here</body></html>`))
	require.NoError(t, err)
	_, ok = loginForm(doc)
	require.False(t, ok)
}

func TestAlertClassification(t *testing.T) {
	testCases := []struct {
		name     string
		page     string
		text     string
		expected Status
	}{
		{
			name:     "notice div without alert class",
			page:     `<div class="notice">Please wait to continue to redeem</div>`,
			text:     "Please wait to continue to redeem",
			expected: StatusTryLater,
		},
		{
			name:     "expired",
			page:     `<div class="alert notice">This SHiFT code has expired</div>`,
			text:     "This SHiFT code has expired",
			expected: StatusExpired,
		},
		{
			name:     "success with messy whitespace",
			page:     "<div class=\"alert success\">\n\t  Your code was successfully  redeemed\t</div>",
			text:     "Your code was successfully redeemed",
			expected: StatusSuccess,
		},
		{
			name:     "already redeemed",
			page:     `<div class="alert">This SHiFT code has already been redeemed (failed)</div>`,
			text:     "This SHiFT code has already been redeemed (failed)",
			expected: StatusRedeemed,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := parseDocument([]byte(tc.page))
			require.NoError(t, err)

			alert, ok := alertText(doc)
			require.True(t, ok)
			require.Equal(t, tc.text, alert)
			require.Equal(t, tc.expected, classifyAlert(alert))
		})
	}

	doc, err := parseDocument([]byte(`<div class="content">nothing to see</div>`))
	require.NoError(t, err)
	_, ok := alertText(doc)
	require.False(t, ok)

	require.Equal(t, StatusNone, classifyAlert("something entirely different"))
}

func TestFindStatusWidget(t *testing.T) {
	page := `
	<div id="check_redemption_status"
		data-url="/code_redemptions/1234/status.json"
		data-fallback-url="/code_redemptions/1234">
		Checking your redemption status...
	</div>`
	doc, err := parseDocument([]byte(page))
	require.NoError(t, err)

	widget, ok := findStatusWidget(doc)
	require.True(t, ok)
	require.Equal(t, "Checking your redemption status...", widget.Text)
	require.Equal(t, "/code_redemptions/1234/status.json", widget.Url)
	require.Equal(t, "/code_redemptions/1234", widget.FallbackUrl)

	doc, err = parseDocument([]byte(`<div id="something_else"></div>`))
	require.NoError(t, err)
	_, ok = findStatusWidget(doc)
	require.False(t, ok)
}

func TestPollText(t *testing.T) {
	text, ok := pollText([]byte(`{"text":"Your code was successfully redeemed","in_progress":false}`))
	require.True(t, ok)
	require.Equal(t, "Your code was successfully redeemed", text)

	_, ok = pollText([]byte(`{"in_progress":true}`))
	require.False(t, ok)

	_, ok = pollText([]byte(`<html>definitely not json</html>`))
	require.False(t, ok)
}
