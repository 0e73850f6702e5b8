package dom

import (
	"fmt"

	"golang.org/x/net/html"
)

// XPath locates n from the document root, e.g. /html/body/div[2]/span. A
// positional index is added only when the parent has several children with
// the same tag.
func XPath(n *html.Node) string {
	if n == nil {
		return ""
	}

	switch n.Type {
	case html.DocumentNode:
		return ""
	case html.DoctypeNode:
		return XPath(n.Parent)
	case html.TextNode:
		return XPath(n.Parent) + "/text()"
	case html.CommentNode:
		return XPath(n.Parent) + "/comment()"
	case html.ElementNode:
	default:
		return XPath(n.Parent)
	}

	parentPath := XPath(n.Parent)
	if n.Parent == nil {
		return "/" + n.Data
	}

	idx, total := 0, 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != n.Data {
			continue
		}
		total++
		if c == n {
			idx = total
		}
	}

	if total > 1 {
		return fmt.Sprintf("%s/%s[%d]", parentPath, n.Data, idx)
	}
	return parentPath + "/" + n.Data
}
