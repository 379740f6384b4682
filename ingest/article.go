package ingest

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// articleMinLen is the minimum content-node text length considered a
// candidate article body.
const articleMinLen = 200

var sanitizer = bluemonday.UGCPolicy()

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// ImportArticle turns raw page HTML into a markdown document: sanitize,
// locate the content root by text density, convert that subtree to
// markdown with table support.
func ImportArticle(rawHTML []byte) (*Extraction, error) {
	doc, err := html.Parse(strings.NewReader(string(rawHTML)))
	if err != nil {
		return nil, fmt.Errorf("ingest: parse html: %w", err)
	}
	title := pageTitle(doc)

	root := contentRoot(doc)
	if root == nil {
		return nil, fmt.Errorf("ingest: no article content found")
	}

	clean := sanitizer.Sanitize(renderNode(root))
	markdown, err := mdConverter.ConvertString(clean)
	if err != nil {
		return nil, fmt.Errorf("ingest: markdown conversion: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return nil, fmt.Errorf("ingest: article content empty after conversion")
	}

	if title == "" {
		title = firstLineTitle(markdown)
	}
	return &Extraction{
		Title:   title,
		Text:    markdown,
		Quality: measureQuality(markdown, 0),
	}, nil
}

// contentRoot picks the article body: semantic landmarks first, then the
// densest low-link-density subtree.
func contentRoot(doc *html.Node) *html.Node {
	for _, n := range landmarkNodes(doc) {
		if len(collectText(n)) >= articleMinLen {
			return n
		}
	}
	body := findBody(doc)
	if body == nil {
		return nil
	}
	if best := densestNode(body); best != nil {
		return best
	}
	if len(collectText(body)) >= articleMinLen {
		return body
	}
	return nil
}

// landmarkNodes returns <article> and <main> elements in document order.
func landmarkNodes(doc *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode &&
			(n.DataAtom == atom.Article || n.DataAtom == atom.Main) && !boilerplate(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

type contentScore struct {
	node     *html.Node
	textLen  int
	linkDens float64
	score    float64
}

// densestNode walks content-bearing elements and ranks them by text
// density against markup size, penalizing link-heavy subtrees (navigation,
// related-article blocks).
func densestNode(root *html.Node) *html.Node {
	var best *contentScore

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type != html.ElementNode || boilerplate(n) {
			return
		}
		if contentTag(n.DataAtom) || n.DataAtom == atom.Body {
			text := collectText(n)
			if len(text) >= articleMinLen {
				markup := len(renderNode(n))
				if markup == 0 {
					markup = 1
				}
				linkDens := float64(len(linkText(n))) / float64(len(text))
				if linkDens <= 0.5 {
					s := &contentScore{
						node:     n,
						textLen:  len(text),
						linkDens: linkDens,
					}
					s.score = float64(s.textLen) / float64(markup) * lengthScale(s.textLen) * (1 - linkDens)
					if best == nil || s.score > best.score {
						best = s
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if best == nil {
		return nil
	}
	return best.node
}

func lengthScale(n int) float64 {
	scale := 1.0
	for n > 100 {
		scale++
		n /= 2
	}
	return scale
}

func contentTag(a atom.Atom) bool {
	switch a {
	case atom.Article, atom.Main, atom.Section, atom.Div, atom.Td:
		return true
	}
	return false
}

// boilerplate filters navigation chrome by tag and by the usual class/id
// markers.
func boilerplate(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Nav, atom.Footer, atom.Header, atom.Aside, atom.Script, atom.Style, atom.Noscript, atom.Form:
		return true
	}
	for _, a := range n.Attr {
		if a.Key != "class" && a.Key != "id" {
			continue
		}
		v := strings.ToLower(a.Val)
		for _, marker := range []string{"sidebar", "comment", "footer", "nav", "menu", "advert", "banner", "cookie"} {
			if strings.Contains(v, marker) {
				return true
			}
		}
	}
	return false
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

func linkText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node, bool)
	f = func(n *html.Node, inLink bool) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			inLink = true
		}
		if n.Type == html.TextNode && inLink {
			sb.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c, inLink)
		}
	}
	f(n, false)
	return sb.String()
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

func findBody(doc *html.Node) *html.Node {
	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return body
}

func pageTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}
