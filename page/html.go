package page

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// boilerplate is removed before text extraction
const boilerplate = "script, style, noscript, nav, footer, header, aside"

var whitespaceRe = regexp.MustCompile(`\s+`)

// Page is a parsed HTML document
type Page struct {
	URL *url.URL
	doc *goquery.Document
}

// Link is an anchor with its resolved URL
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Title returns the page title
// Priority: og:title > twitter:title > h1 > title tag
func (p *Page) Title() string {
	if len(p.doc.Nodes) == 0 {
		return ""
	}
	return extractTitle(p.doc.Nodes[0])
}

// CleanText returns visible text without boilerplate elements, whitespace
// collapsed to single spaces. The document itself is not modified.
func (p *Page) CleanText() string {
	sel := p.doc.Selection.Clone()
	sel.Find(boilerplate).Remove()

	var parts []string
	for _, n := range sel.Nodes {
		parts = append(parts, extractText(n))
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.Join(parts, " "), " "))
}

// BodyText returns the text of <body> with one line per block element
func (p *Page) BodyText() string {
	body := p.doc.Find("body")
	if body.Length() == 0 {
		return ""
	}

	var buf strings.Builder
	for _, n := range body.Nodes {
		writeBlockText(n, &buf)
	}

	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		line = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Links returns every anchor resolved against the page URL, first
// occurrence wins
func (p *Page) Links() []Link {
	var links []Link
	seen := make(map[string]bool)

	p.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		linkURL, err := resolveURL(p.URL, href)
		if err != nil || seen[linkURL] {
			return
		}
		seen[linkURL] = true
		links = append(links, Link{
			URL:  linkURL,
			Text: strings.TrimSpace(whitespaceRe.ReplaceAllString(s.Text(), " ")),
		})
	})

	return links
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	if n < 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func extractTitle(n *html.Node) string {
	var ogTitle, twitterTitle, h1Title, htmlTitle string

	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				var property, name, content string
				for _, attr := range n.Attr {
					switch attr.Key {
					case "property":
						property = strings.ToLower(attr.Val)
					case "name":
						name = strings.ToLower(attr.Val)
					case "content":
						content = attr.Val
					}
				}
				if property == "og:title" && ogTitle == "" {
					ogTitle = strings.TrimSpace(content)
				} else if name == "twitter:title" && twitterTitle == "" {
					twitterTitle = strings.TrimSpace(content)
				}
			case "h1":
				if h1Title == "" && n.FirstChild != nil {
					h1Title = extractTextFromNode(n)
				}
			case "title":
				if htmlTitle == "" && n.FirstChild != nil {
					htmlTitle = n.FirstChild.Data
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)

	switch {
	case ogTitle != "":
		return ogTitle
	case twitterTitle != "":
		return twitterTitle
	case h1Title != "":
		return strings.TrimSpace(h1Title)
	}
	return strings.TrimSpace(htmlTitle)
}

// extractTextFromNode joins the trimmed text of a node and its children
func extractTextFromNode(n *html.Node) string {
	var parts []string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.Join(parts, " ")
}

// extractText extracts all text content, skipping scripts and styles
func extractText(n *html.Node) string {
	var buf strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.TrimSpace(buf.String())
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// writeBlockText approximates rendered innerText: block elements start and
// end on their own line
func writeBlockText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
		return
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		buf.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeBlockText(c, buf)
	}
	if block {
		buf.WriteString("\n")
	}
}

// resolveURL resolves a potentially relative URL against a base URL
func resolveURL(base *url.URL, href string) (string, error) {
	parsed, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if base == nil {
		return parsed.String(), nil
	}
	return base.ResolveReference(parsed).String(), nil
}
