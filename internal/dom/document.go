// Package dom holds a live HTML document: a goquery/x/net/html tree guarded by
// a lock, a mutation API that reports every change to registered observers,
// and the stylesheet access needed to compute element styles.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/bnema/elemhide/internal/style"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is an HTML document that can be read and mutated concurrently.
// Readers go through View; the mutation methods take the write lock and
// notify observers once it is released.
type Document struct {
	mu   sync.RWMutex
	root *html.Node

	obsMu     sync.Mutex
	observers map[int]*observer
	nextObsID int
}

// Parse reads an HTML document
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return New(doc.Get(0)), nil
}

// ParseString parses an HTML document held in a string
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// New wraps an already parsed document node
func New(root *html.Node) *Document {
	return &Document{
		root:      root,
		observers: make(map[int]*observer),
	}
}

// View runs fn with the document node under the read lock. fn must not
// call the mutation methods or keep references to nodes for mutation
// outside of the document's methods.
func (d *Document) View(fn func(root *html.Node)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.root)
}

// Query returns the elements matching a CSS selector, in document order
func (d *Document) Query(sel string) []*html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return goquery.NewDocumentFromNode(d.root).Find(sel).Nodes
}

// QueryFirst returns the first element matching sel, or nil
func (d *Document) QueryFirst(sel string) *html.Node {
	if nodes := d.Query(sel); len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// HTML serializes the whole document
func (d *Document) HTML() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("failed to serialize HTML: %w", err)
	}
	return buf.String(), nil
}

// Render writes the whole document to w
func (d *Document) Render(w io.Writer) error {
	s, err := d.HTML()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

// Attr returns the value of an attribute of n
func (d *Document) Attr(n *html.Node, key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return attr(n, key)
}

// StyleSheets returns the text of every <style> element in document order
func (d *Document) StyleSheets() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return StyleSheets(d.root)
}

// StyleSheets collects the text of every <style> element under root, in
// document order. Sheets limited to print media are left out.
func StyleSheets(root *html.Node) []string {
	var sheets []string
	for _, n := range goquery.NewDocumentFromNode(root).Find("style").Nodes {
		if media, ok := attr(n, "media"); ok && strings.EqualFold(strings.TrimSpace(media), "print") {
			continue
		}
		sheets = append(sheets, textContent(n))
	}
	return sheets
}

// ComputedStyle returns the computed style of n or of one of its
// pseudo-elements. Rules of the document that cannot be parsed are ignored.
func (d *Document) ComputedStyle(n *html.Node, pseudo string) map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, _ := style.Compile(StyleSheets(d.root)...)
	return r.Compute(n, pseudo)
}

// InsertRule appends a CSS rule to the document's first <style> element,
// creating one in <head> when there is none. Like a CSSOM insertRule call it
// changes no node observers could see, so it is not reported.
func (d *Document) InsertRule(rule string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sheet := goquery.NewDocumentFromNode(d.root).Find("style").First()
	var el *html.Node
	if sheet.Length() > 0 {
		el = sheet.Get(0)
	} else {
		el = &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style}
		head := goquery.NewDocumentFromNode(d.root).Find("head").First()
		if head.Length() > 0 {
			head.Get(0).AppendChild(el)
		} else if docEl := documentElement(d.root); docEl != nil {
			docEl.InsertBefore(el, docEl.FirstChild)
		} else {
			d.root.AppendChild(el)
		}
	}

	text := textContent(el)
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	setTextContent(el, text+rule+"\n")
}

func attr(n *html.Node, key string) (string, bool) {
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

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func setTextContent(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func documentElement(root *html.Node) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}
