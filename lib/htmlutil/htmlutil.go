package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
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
	// text of sibling block elements would otherwise be glued together
	if node.Type == html.ElementNode && buffer.Len() > 0 {
		buffer.WriteByte(' ')
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || c == '\n' || c == '\t' {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText strips non-printable characters, trims the ends and collapses inner whitespace.
func CleanText(text string) string {
	text = removeNonPrintable(text)
	text = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, text)
	text = strings.Trim(text, " ")
	return innerWhitespace.ReplaceAllString(text, " ")
}

// Text returns the cleaned text content of every node in the selection, joined by a space.
func Text(sel *goquery.Selection) string {
	parts := make([]string, 0, len(sel.Nodes))
	for _, n := range sel.Nodes {
		text := CleanText(GetText(n))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Fragment renders the outer html of the first node in the selection, truncated to
// at most `limit` bytes so it can be attached to log lines.
func Fragment(sel *goquery.Selection, limit int) string {
	rendered, err := goquery.OuterHtml(sel.First())
	if err != nil {
		return ""
	}
	rendered = CleanText(rendered)
	if limit > 0 && len(rendered) > limit {
		return rendered[:limit] + "..."
	}
	return rendered
}
