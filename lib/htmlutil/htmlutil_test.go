package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestGetText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(
		`<div>hello <b>bold</b> <span>nested <i>text</i></span></div>`))
	require.NoError(t, err)

	require.Equal(t, "hello bold nested text", GetText(doc))
	require.Empty(t, GetText(nil))
}

func TestCleanText(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"  hello   world  ", "hello world"},
		{"line one\n\t\tline two", "line one line two"},
		{"\n\t  Your code was successfully  redeemed\t", "Your code was successfully redeemed"},
		{"", ""},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, CleanText(tc.in))
	}
}
