package story

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/viant/stepflow/model/fault"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Story is the primary story of an office page.
type Story struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageURL"`
}

// Extract parses the first story tab of a weather story page.  Relative
// image sources are resolved against pageURL.
//
// The page layout is
//
//	div.c-tabs-nav__link > span                  title
//	div.c-tab > div > div > div:first > img      image
//	div.c-tab > div > div > div:second           description
func Extract(page []byte, pageURL string) (*Story, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fault.Invalid("parse story page", err)
	}
	ret := &Story{}
	if link := find(doc, classed(atom.Div, "c-tabs-nav__link")); link != nil {
		if span := child(link, 0); span != nil && span.DataAtom == atom.Span {
			ret.Title = text(span)
		}
	}
	if tab := find(doc, classed(atom.Div, "c-tab")); tab != nil {
		row := child(child(tab, 0), 0)
		if img := child(child(row, 0), 0); img != nil && img.DataAtom == atom.Img {
			ret.ImageURL = attr(img, "src")
		}
		if description := child(row, 1); description != nil {
			ret.Description = text(description)
		}
	}
	switch {
	case ret.Title == "":
		return nil, fault.MissingField("extract story", "title")
	case ret.ImageURL == "":
		return nil, fault.MissingField("extract story", "image")
	}
	if ret.ImageURL, err = resolve(pageURL, ret.ImageURL); err != nil {
		return nil, fault.Invalid("extract story", err)
	}
	return ret, nil
}

func resolve(base, ref string) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid image source %q: %w", ref, err)
	}
	if refURL.IsAbs() || base == "" {
		return refURL.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", base, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

func classed(tag atom.Atom, class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != tag {
			return false
		}
		for _, candidate := range strings.Fields(attr(n, "class")) {
			if candidate == class {
				return true
			}
		}
		return false
	}
}

// find returns the first node in document order matching fn.
func find(n *html.Node, fn func(*html.Node) bool) *html.Node {
	if fn(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, fn); found != nil {
			return found
		}
	}
	return nil
}

// child returns the index-th element child of n.
func child(n *html.Node, index int) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if index == 0 {
			return c
		}
		index--
	}
	return nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// text returns the text content of n with every line trimmed and blank
// lines dropped.
func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
