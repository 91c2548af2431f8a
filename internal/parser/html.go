package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/synthtune/internal/document"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := &document.Document{Title: titleFor(filename, ".html", ".htm")}

	if t := findElement(root, "title"); t != nil {
		if title := collapseSpace(textContent(t)); title != "" {
			doc.Title = title
		}
	}

	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				if title := collapseSpace(textContent(n)); title != "" {
					blocks = append(blocks, title)
					doc.Headings = append(doc.Headings, document.Heading{Level: level, Title: title, Page: 1})
				}
				return
			}

			// Skip non-content elements.
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "pre":
				if t := strings.Trim(textContent(n), "\n"); strings.TrimSpace(t) != "" {
					blocks = append(blocks, t)
				}
				return
			case "p", "li", "td", "th", "blockquote", "dt", "dd", "caption":
				if t := collapseSpace(textContent(n)); t != "" {
					blocks = append(blocks, t)
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findElement(root, "body"); body != nil {
		walk(body)
	} else {
		walk(root)
	}

	doc.Pages = singlePage(blocks)
	return doc, nil
}

// headingLevel returns 1-6 for h1-h6 and 0 for any other tag.
func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			buf.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

// collapseSpace folds wrapped source lines and <br> breaks into single
// spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// findElement returns the first element named tag in document order.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
