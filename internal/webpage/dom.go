package webpage

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Matcher selects nodes during a tree walk.
type Matcher func(*html.Node) bool

// Tag matches element nodes named tag.
func Tag(tag string) Matcher {
	return func(n *html.Node) bool { return IsElement(n, tag) }
}

// TagWithClass matches element nodes named tag that carry class.
func TagWithClass(tag, class string) Matcher {
	return func(n *html.Node) bool { return IsElement(n, tag) && HasClass(n, class) }
}

// IsElement reports whether n is an element named tag.
func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasClass reports whether class is one of n's space separated classes.
func HasClass(n *html.Node, class string) bool {
	v, ok := Attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// FindAll returns the descendants of root that match, in document order.
// root itself is never included.
func FindAll(root *html.Node, match Matcher) []*html.Node {
	var found []*html.Node
	walk(root, func(n *html.Node) bool {
		if match(n) {
			found = append(found, n)
		}
		return true
	})
	return found
}

// FindFirst returns the first descendant of root that matches, or nil.
func FindFirst(root *html.Node, match Matcher) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// walk visits the descendants of root depth first until visit returns false.
func walk(root *html.Node, visit func(*html.Node) bool) bool {
	if root == nil {
		return true
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if !visit(c) || !walk(c, visit) {
			return false
		}
	}
	return true
}

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	var b strings.Builder
	if n != nil && n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return strings.TrimSpace(b.String())
}

// Resolve resolves href against base the way a browser would.
func Resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}
