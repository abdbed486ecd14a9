package shift

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/Fabbi/autoshift/lib/htmlutil"
	"github.com/Fabbi/autoshift/lib/keydb"

	"github.com/PuerkitoBio/goquery"
)

// Stateless extraction helpers over already-fetched markup. goquery
// tolerates arbitrarily broken markup, so absence of a match is always
// a normal "not found" result, never an error.

func parseDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// csrfToken pulls the per-session anti-forgery token out of the page
// head (<meta name="csrf-token" content="...">).
func csrfToken(doc *goquery.Document) string {
	return doc.Find(`meta[name=csrf-token]`).AttrOr("content", "")
}

// formValues collects the name/value pairs of every <input> inside the
// selection.
func formValues(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		values.Set(name, input.AttrOr("value", ""))
	})
	return values
}

// loginForm returns the field set of the first form on the page.
func loginForm(doc *goquery.Document) (url.Values, bool) {
	form := doc.Find("form").First()
	if form.Length() == 0 {
		return nil, false
	}
	return formValues(form), true
}

// redemptionForm finds the platform-specific redemption form among the
// coexisting per-service forms and returns its submission payload.
// The match runs against the hidden "service" input's value, which
// carries the platform in either its short or long spelling.
func redemptionForm(doc *goquery.Document, platform keydb.Platform) (url.Values, bool) {
	aliases := platform.Aliases()

	var payload url.Values
	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		matched := false
		form.Find("input").EachWithBreak(func(_ int, input *goquery.Selection) bool {
			name := input.AttrOr("name", "")
			if !strings.Contains(name, "service") {
				return true
			}
			value := strings.ToLower(input.AttrOr("value", ""))
			for _, alias := range aliases {
				if strings.Contains(value, alias) {
					matched = true
					return false
				}
			}
			return true
		})
		if matched {
			payload = formValues(form)
			return false
		}
		return true
	})

	if payload == nil {
		return nil, false
	}
	return payload, true
}

// alertText returns the cleaned text of the page's alert banner.
func alertText(doc *goquery.Document) (string, bool) {
	alert := doc.Find("div.alert, div.notice").First()
	if alert.Length() == 0 {
		return "", false
	}
	return htmlutil.CleanText(htmlutil.GetText(alert.Nodes[0])), true
}

// classifyAlert maps an alert banner to a status by substring.
func classifyAlert(alert string) Status {
	lower := strings.ToLower(alert)
	switch {
	case strings.Contains(lower, "to continue to redeem"):
		return StatusTryLater
	case strings.Contains(lower, "expired"):
		return StatusExpired
	case strings.Contains(lower, "success"):
		return StatusSuccess
	case strings.Contains(lower, "failed"):
		return StatusRedeemed
	}
	return StatusNone
}

// statusWidget is the inline "checking redemption status" element the
// site renders when the submission's result is not yet decided.
type statusWidget struct {
	Text string
	// polling endpoint
	Url string
	// where to send the operator when polling does not resolve
	FallbackUrl string
}

func findStatusWidget(doc *goquery.Document) (statusWidget, bool) {
	div := doc.Find("div#check_redemption_status").First()
	if div.Length() == 0 {
		return statusWidget{}, false
	}
	return statusWidget{
		Text:        htmlutil.CleanText(htmlutil.GetText(div.Nodes[0])),
		Url:         div.AttrOr("data-url", ""),
		FallbackUrl: div.AttrOr("data-fallback-url", ""),
	}, true
}

// pollText extracts the "text" field from a status poll's JSON
// fragment.
func pollText(body []byte) (string, bool) {
	var payload struct {
		Text *string `json:"text"`
	}
	err := json.Unmarshal(body, &payload)
	if err != nil || payload.Text == nil {
		return "", false
	}
	return *payload.Text, true
}
