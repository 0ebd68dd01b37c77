// ABOUTME: HTML helpers for registry text: plain-text descriptions and HTML-to-markdown readmes
// ABOUTME: Uses golang.org/x/net/html; falls back to the raw input when parsing fails

package registry

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// PlainText strips markup from s and collapses whitespace. Some packages
// publish descriptions containing HTML.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(extractText(doc)), " ")
}

// HTMLToMarkdown rewrites HTML blocks embedded in a readme (badges,
// centered headers) into markdown so terminal renderers can show them.
// Only blank-line separated blocks that start with a tag and sit outside
// fenced code are touched.
func HTMLToMarkdown(raw string) string {
	blocks := strings.Split(raw, "\n\n")
	inFence := false
	for i, blk := range blocks {
		if !inFence && strings.HasPrefix(strings.TrimSpace(blk), "<") {
			blocks[i] = blockToMarkdown(blk)
		}
		if strings.Count(blk, "```")%2 == 1 {
			inFence = !inFence
		}
	}
	return strings.Join(blocks, "\n\n")
}

func blockToMarkdown(blk string) string {
	doc, err := html.Parse(strings.NewReader(blk))
	if err != nil {
		return blk
	}
	var b strings.Builder
	extractReadable(doc, &b, false)
	return strings.TrimSpace(b.String())
}

// extractReadable walks the HTML tree and writes markdown.
func extractReadable(n *html.Node, b *strings.Builder, inPre bool) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "iframe", "noscript":
			return
		case "h1":
			b.WriteString("\n# ")
		case "h2":
			b.WriteString("\n## ")
		case "h3":
			b.WriteString("\n### ")
		case "h4", "h5", "h6":
			b.WriteString("\n#### ")
		case "p", "div", "section", "article":
			b.WriteString("\n\n")
		case "br":
			b.WriteString("\n")
		case "li":
			b.WriteString("\n- ")
		case "pre":
			b.WriteString("\n```\n")
			inPre = true
		case "code":
			if !inPre {
				b.WriteString("`")
			}
		case "img":
			// badges carry their meaning in alt text
			if alt := getAttr(n, "alt"); alt != "" {
				b.WriteString(alt)
			}
			return
		case "a":
			href := getAttr(n, "href")
			if href != "" {
				text := extractText(n)
				if text != "" {
					fmt.Fprintf(b, "[%s](%s)", text, href)
					return
				}
			}
		case "strong", "b":
			b.WriteString("**")
		case "em", "i":
			b.WriteString("*")
		}
	}

	if n.Type == html.TextNode {
		text := n.Data
		if !inPre {
			text = strings.Join(strings.Fields(text), " ")
		}
		if text != "" {
			b.WriteString(text)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractReadable(c, b, inPre)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "pre":
			b.WriteString("\n```\n")
		case "code":
			if !inPre {
				b.WriteString("`")
			}
		case "strong", "b":
			b.WriteString("**")
		case "em", "i":
			b.WriteString("*")
		case "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n")
		}
	}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
