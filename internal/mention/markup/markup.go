// Package markup converts documents to and from the editor's HTML data
// format. Mentions are carried as <a class="mention" data-mention=...>.
package markup

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"mentioneditor/internal/document"
)

const mentionClass = "mention"

// Downcast renders nodes as a single HTML paragraph.
func Downcast(nodes []*document.Node) string {
	var b strings.Builder
	b.WriteString("<p>")
	for _, n := range nodes {
		switch n.Kind {
		case document.KindText:
			lines := strings.Split(n.Text, "\n")
			for i, line := range lines {
				if i > 0 {
					b.WriteString("<br>")
				}
				b.WriteString(html.EscapeString(line))
			}
		case document.KindMention:
			if n.Mention == nil {
				continue
			}
			fmt.Fprintf(&b, `<a class="%s" data-mention="%s" data-user-id="%s" id="%s">%s</a>`,
				mentionClass,
				html.EscapeString(n.Mention.ID),
				html.EscapeString(n.Mention.UserID),
				html.EscapeString(n.Mention.UID),
				html.EscapeString(n.Text),
			)
		case document.KindImage:
			if n.Image == nil {
				continue
			}
			fmt.Fprintf(&b, `<img src="%s" alt="%s">`, html.EscapeString(n.Image.Src), html.EscapeString(n.Image.Alt))
		}
	}
	b.WriteString("</p>")
	return b.String()
}

// Upcast parses editor HTML into document nodes.
func Upcast(src string) ([]*document.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	frags, err := html.ParseFragment(strings.NewReader(src), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	u := &upcaster{}
	for i, f := range frags {
		if i > 0 && isBlock(f) {
			u.text("\n")
		}
		u.walk(f)
	}
	return u.out, nil
}

type upcaster struct {
	out []*document.Node
}

func (u *upcaster) text(s string) {
	if s == "" {
		return
	}
	if n := len(u.out); n > 0 && u.out[n-1].Kind == document.KindText {
		u.out[n-1].Text += s
		return
	}
	u.out = append(u.out, document.TextNode(s))
}

func (u *upcaster) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		u.text(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.A:
			if m, ok := mentionFrom(n); ok {
				mn := document.MentionNode(m)
				if label := textContent(n); label != "" {
					mn.Text = label
				}
				u.out = append(u.out, mn)
				return
			}
		case atom.Img:
			if src := attr(n, "src"); src != "" {
				u.out = append(u.out, document.ImageNode(document.Image{Src: src, Alt: attr(n, "alt")}))
			}
			return
		case atom.Br:
			u.text("\n")
			return
		}
	}
	first := true
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !first && isBlock(c) {
			u.text("\n")
		}
		u.walk(c)
		first = false
	}
}

func mentionFrom(n *html.Node) (document.Mention, bool) {
	if !hasClass(n, mentionClass) {
		return document.Mention{}, false
	}
	id := strings.TrimSpace(attr(n, "data-mention"))
	if id == "" {
		return document.Mention{}, false
	}
	uid := strings.TrimSpace(attr(n, "id"))
	if uid == "" {
		uid = "m" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return document.Mention{ID: id, UserID: strings.TrimSpace(attr(n, "data-user-id")), UID: uid}, true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return b.String()
}

func isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Li, atom.Pre:
		return true
	default:
		return false
	}
}
