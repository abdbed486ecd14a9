package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
)

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(&out, "%s: %s\n", k, v)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	read, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(read)
}

func formatHttpMessage(res *resty.Response) string {
	var out strings.Builder

	fmt.Fprintf(&out, "---- REQUEST ----\n\n")
	fmt.Fprintf(&out, "%s %s\n\n", res.Request.Method, res.Request.URL)
	if res.Request.RawRequest != nil {
		fmt.Fprintf(&out, "%s\n\n", formatHeaders(res.Request.RawRequest.Header))
		fmt.Fprintf(&out, "%s\n\n", formatRequestBody(res.Request.RawRequest))
	}

	fmt.Fprintf(&out, "---- RESPONSE ----\n\n")
	fmt.Fprintf(&out, "%d %s\n\n", res.StatusCode(), res.Request.URL)
	fmt.Fprintf(&out, "%s\n\n", formatHeaders(res.Header()))
	out.WriteString(res.String())

	return out.String()
}
