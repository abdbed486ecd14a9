package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var whitespaceRuns = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	out := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// CleanText flattens scraped markup text into one human-readable line:
// whitespace runs collapse to single spaces, non-printable runes are
// dropped.
func CleanText(s string) string {
	s = whitespaceRuns.ReplaceAllString(s, " ")
	s = removeNonPrintable(s)
	return strings.Trim(s, " ")
}
