// Package html extracts the human-readable title from an HTML document.
package html

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Title parses an HTML document and returns its title the way a browser
// reports document.title: the text of the first HTML <title> element in tree
// order, with ASCII whitespace stripped and collapsed. A document without a
// title yields "".
func Title(r io.Reader) (string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	return titleOf(root), nil
}

// TitleString parses HTML from a string.
func TitleString(s string) (string, error) {
	return Title(strings.NewReader(s))
}

func titleOf(root *html.Node) string {
	doc := goquery.NewDocumentFromNode(root)

	// <title> inside inline SVG or MathML does not name the document.
	sel := doc.Find("title").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Nodes[0].Namespace == ""
	}).First()
	if sel.Length() == 0 {
		return ""
	}

	return collapseWhitespace(childText(sel.Nodes[0]))
}

// childText concatenates the text node children of n.
func childText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, isASCIISpace), " ")
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}
