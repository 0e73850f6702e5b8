package dom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/elemhide/internal/dom/mutation"
	"github.com/bnema/elemhide/internal/style"
	"golang.org/x/net/html"
)

// ErrDetached is returned when a node does not belong to the document
var ErrDetached = errors.New("node is not attached to the document")

// AppendChild inserts child as the last child of parent. child must not have
// a parent.
func (d *Document) AppendChild(parent, child *html.Node) error {
	d.mu.Lock()
	if !d.contains(parent) {
		d.mu.Unlock()
		return ErrDetached
	}
	if child.Parent != nil {
		d.mu.Unlock()
		return fmt.Errorf("append %s: child already has a parent", nodeName(child))
	}
	parent.AppendChild(child)
	rec := insertRecord(child)
	d.mu.Unlock()

	d.notify(rec)
	return nil
}

// AppendHTML parses markup in the context of parent and appends the result
func (d *Document) AppendHTML(parent *html.Node, markup string) error {
	d.mu.Lock()
	if !d.contains(parent) {
		d.mu.Unlock()
		return ErrDetached
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("failed to parse fragment: %w", err)
	}
	records := make([]mutation.Record, 0, len(nodes))
	for _, n := range nodes {
		parent.AppendChild(n)
		records = append(records, insertRecord(n))
	}
	d.mu.Unlock()

	d.notify(records...)
	return nil
}

// RemoveChild detaches n from the document
func (d *Document) RemoveChild(n *html.Node) error {
	d.mu.Lock()
	if n == nil || n.Parent == nil || !d.contains(n) {
		d.mu.Unlock()
		return ErrDetached
	}
	rec := mutation.Record{Op: mutation.OpRemove, XPath: XPath(n), NodeType: nodeType(n), Tag: tag(n)}
	n.Parent.RemoveChild(n)
	d.mu.Unlock()

	d.notify(rec)
	return nil
}

// SetAttribute sets an attribute of n
func (d *Document) SetAttribute(n *html.Node, key, value string) error {
	d.mu.Lock()
	rec, err := d.setAttribute(n, key, value)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	d.notify(rec)
	return nil
}

// RemoveAttribute removes an attribute of n. Removing a missing attribute is
// not a mutation.
func (d *Document) RemoveAttribute(n *html.Node, key string) error {
	d.mu.Lock()
	if !d.contains(n) {
		d.mu.Unlock()
		return ErrDetached
	}
	idx := -1
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			idx = i
			break
		}
	}
	if idx == -1 {
		d.mu.Unlock()
		return nil
	}
	rec := mutation.Record{Op: mutation.OpAttrDel, XPath: XPath(n), NodeType: nodeType(n), Tag: tag(n), Name: key, OldValue: n.Attr[idx].Val}
	n.Attr = append(n.Attr[:idx], n.Attr[idx+1:]...)
	d.mu.Unlock()

	d.notify(rec)
	return nil
}

// SetStyleProperty sets one property of the inline style of n, the way
// element.style.setProperty does.
func (d *Document) SetStyleProperty(n *html.Node, prop, value string, important bool) error {
	d.mu.Lock()
	current, _ := attr(n, "style")
	rec, err := d.setAttribute(n, "style", style.SetProperty(current, prop, value, important))
	d.mu.Unlock()
	if err != nil {
		return err
	}

	d.notify(rec)
	return nil
}

// SetText replaces the children of n with a single text node
func (d *Document) SetText(n *html.Node, text string) error {
	d.mu.Lock()
	if !d.contains(n) {
		d.mu.Unlock()
		return ErrDetached
	}
	rec := mutation.Record{Op: mutation.OpText, XPath: XPath(n) + "/text()", NodeType: int(html.TextNode), Value: text, OldValue: textContent(n)}
	setTextContent(n, text)
	d.mu.Unlock()

	d.notify(rec)
	return nil
}

// SetInnerHTML replaces the children of n with the parsed markup
func (d *Document) SetInnerHTML(n *html.Node, markup string) error {
	d.mu.Lock()
	records, err := d.setInnerHTML(n, markup)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	d.notify(records...)
	return nil
}

// ReplaceBody swaps the content of <body> for the body of another page
func (d *Document) ReplaceBody(markup string) error {
	d.mu.Lock()
	body := findElement(d.root, "body")
	if body == nil {
		d.mu.Unlock()
		return errors.New("document has no body")
	}
	records, err := d.setInnerHTML(body, markup)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	d.notify(records...)
	return nil
}

func (d *Document) setAttribute(n *html.Node, key, value string) (mutation.Record, error) {
	if !d.contains(n) {
		return mutation.Record{}, ErrDetached
	}
	rec := mutation.Record{Op: mutation.OpAttr, XPath: XPath(n), NodeType: nodeType(n), Tag: tag(n), Name: key, Value: value}
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			rec.OldValue = a.Val
			n.Attr[i].Val = value
			return rec, nil
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
	return rec, nil
}

func (d *Document) setInnerHTML(n *html.Node, markup string) ([]mutation.Record, error) {
	if !d.contains(n) {
		return nil, ErrDetached
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	var records []mutation.Record
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		records = append(records, mutation.Record{Op: mutation.OpRemove, XPath: XPath(c), NodeType: nodeType(c), Tag: tag(c)})
		n.RemoveChild(c)
		c = next
	}
	for _, c := range nodes {
		n.AppendChild(c)
		records = append(records, insertRecord(c))
	}
	return records, nil
}

// contains reports whether n is attached to the document
func (d *Document) contains(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

func insertRecord(n *html.Node) mutation.Record {
	return mutation.Record{Op: mutation.OpInsert, XPath: XPath(n), NodeType: nodeType(n), Tag: tag(n)}
}

func nodeType(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return 1
	case html.TextNode:
		return 3
	case html.CommentNode:
		return 8
	}
	return 0
}

func tag(n *html.Node) string {
	if n.Type == html.ElementNode {
		return n.Data
	}
	return ""
}

func nodeName(n *html.Node) string {
	if n.Type == html.ElementNode {
		return "<" + n.Data + ">"
	}
	return "node"
}

func findElement(n *html.Node, name string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == name {
			return c
		}
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}
