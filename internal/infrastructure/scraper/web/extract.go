package web

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var droppedTags = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Form:     true,
	atom.Button:   true,
	atom.Template: true,
}

var blockTags = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Blockquote: true, atom.Br: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Hr: true, atom.Li: true, atom.Main: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Td: true, atom.Th: true, atom.Tr: true, atom.Ul: true,
}

// Containers never dropped by the class/id heuristic.
var structuralTags = map[atom.Atom]bool{
	atom.Html: true, atom.Body: true, atom.Main: true, atom.Article: true,
}

var boilerplateKeywords = map[string]bool{
	"nav": true, "navbar": true, "navigation": true, "sidenav": true,
	"menu": true, "footer": true, "header": true, "sidebar": true,
	"cookie": true, "banner": true, "breadcrumb": true, "breadcrumbs": true,
	"share": true, "social": true, "advert": true, "popup": true, "subscribe": true,
}

// Layout names like "has-sidebar" or "with-nav" describe a wrapper's state,
// not a boilerplate block.
var stateModifiers = map[string]bool{
	"has": true, "with": true, "no": true, "without": true, "is": true,
	"show": true, "hide": true, "hidden": true,
}

var lowValuePrefixes = []string{
	"share this", "share on", "follow us", "skip to content", "skip to main content",
	"back to top", "was this page helpful", "subscribe to",
}

var navWords = map[string]bool{
	"home": true, "menu": true, "login": true, "log": true, "in": true, "sign": true,
	"up": true, "search": true, "contact": true, "about": true, "blog": true,
	"careers": true, "next": true, "previous": true, "back": true, "more": true,
	"close": true, "open": true, "toggle": true, "docs": true, "pricing": true,
}

type extractedPage struct {
	title string
	text  string
}

func extractPage(body []byte) (extractedPage, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return extractedPage{}, err
	}

	var raw strings.Builder
	collectText(root, &raw)

	return extractedPage{
		title: pageTitle(root),
		text:  cleanLines(raw.String()),
	}, nil
}

func pageTitle(root *html.Node) string {
	if n := findFirst(root, atom.Title); n != nil {
		if t := collapseSpaces(textContent(n)); t != "" {
			return t
		}
	}
	if n := findFirst(root, atom.H1); n != nil {
		if t := collapseSpaces(textContent(n)); t != "" {
			return t
		}
	}
	return "Untitled"
}

func collectText(n *html.Node, out *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		out.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if droppedTags[n.DataAtom] || (!structuralTags[n.DataAtom] && isBoilerplate(n)) {
			return
		}
	}

	block := n.Type == html.ElementNode && blockTags[n.DataAtom]
	if block {
		out.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, out)
	}
	if block {
		out.WriteByte('\n')
	}
}

func isBoilerplate(n *html.Node) bool {
	for _, attr := range n.Attr {
		value := strings.ToLower(attr.Val)
		switch attr.Key {
		case "role":
			if value == "navigation" || value == "banner" || value == "contentinfo" {
				return true
			}
		case "class":
			for _, name := range strings.Fields(value) {
				if isBoilerplateName(name) {
					return true
				}
			}
		case "id":
			if isBoilerplateName(strings.TrimSpace(value)) {
				return true
			}
		}
	}
	return false
}

// isBoilerplateName matches whole hyphen or underscore separated tokens, so
// "site-footer" and "cookie_banner" match while "navigable" does not.
func isBoilerplateName(name string) bool {
	tokens := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	if len(tokens) == 0 || stateModifiers[tokens[0]] {
		return false
	}
	for _, tok := range tokens {
		if boilerplateKeywords[tok] {
			return true
		}
	}
	return false
}

func cleanLines(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = collapseSpaces(line)
		if line == "" || isLowValueLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isLowValueLine(line string) bool {
	lower := strings.ToLower(line)
	words := strings.Fields(lower)

	if (strings.Contains(lower, "©") || strings.Contains(lower, "copyright") || strings.Contains(lower, "all rights reserved")) && len(words) <= 20 {
		return true
	}
	for _, prefix := range lowValuePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	if len(words) < 3 {
		for _, w := range words {
			if !navWords[strings.TrimFunc(w, unicode.IsPunct)] {
				return false
			}
		}
		return true
	}
	return false
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
