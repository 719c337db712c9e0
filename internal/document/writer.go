package document

import (
	"fmt"
	"strings"
)

// Writer mutates the working copy handed to a Change callback. Nothing it
// does is visible until the callback returns nil.
type Writer struct {
	nodes  []*Node
	sel    Selection
	nextID uint64
	dirty  bool
}

// Len is the width of the working copy.
func (w *Writer) Len() int { return totalWidth(w.nodes) }

// PositionBefore returns the offset at which node starts in the working copy.
func (w *Writer) PositionBefore(n *Node) (int, bool) {
	start, _, ok := span(w.nodes, n.ID())
	return start, ok
}

// PositionAfter returns the offset directly following node in the working copy.
func (w *Writer) PositionAfter(n *Node) (int, bool) {
	_, end, ok := span(w.nodes, n.ID())
	return end, ok
}

// SetSelection collapses the selection to offset. An offset inside a
// mention lands on the token's start.
func (w *Writer) SetSelection(offset int) {
	offset = snapOut(w.nodes, clamp(offset, 0, w.Len()))
	w.sel = Selection{Anchor: offset, Focus: offset}
	w.dirty = true
}

// Remove deletes node as a whole. Selection offsets past the node shift
// left; offsets within it collapse to its start.
func (w *Writer) Remove(n *Node) error {
	id := n.ID()
	idx := -1
	for i, cur := range w.nodes {
		if cur.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("remove node %d: %w", id, ErrNodeNotFound)
	}
	start, end, _ := span(w.nodes, id)
	w.nodes = append(w.nodes[:idx], w.nodes[idx+1:]...)
	shift := func(off int) int {
		switch {
		case off >= end:
			return off - (end - start)
		case off > start:
			return start
		default:
			return off
		}
	}
	w.sel = Selection{Anchor: shift(w.sel.Anchor), Focus: shift(w.sel.Focus)}
	w.dirty = true
	return nil
}

// DeleteAt removes the single unit at [offset, offset+1): one rune of a
// text run or a whole image. Mentions are rejected; removing one goes
// through Remove. Offsets outside the document are ignored.
func (w *Writer) DeleteAt(offset int) error {
	if offset < 0 || offset >= w.Len() {
		return nil
	}
	pos := 0
	for i, n := range w.nodes {
		end := pos + n.Width()
		if offset >= end {
			pos = end
			continue
		}
		switch n.Kind {
		case KindText:
			runes := []rune(n.Text)
			cut := offset - pos
			n.Text = string(runes[:cut]) + string(runes[cut+1:])
		case KindImage:
			w.nodes = append(w.nodes[:i], w.nodes[i+1:]...)
		default:
			return ErrInsideToken
		}
		shift := func(off int) int {
			if off > offset {
				return off - 1
			}
			return off
		}
		w.sel = Selection{Anchor: shift(w.sel.Anchor), Focus: shift(w.sel.Focus)}
		w.dirty = true
		return nil
	}
	return nil
}

// InsertText inserts plain text at offset. Offsets inside a mention are
// rejected so a token is never edited character by character.
func (w *Writer) InsertText(offset int, text string) (*Node, error) {
	if text == "" {
		return nil, nil
	}
	return w.insert(offset, TextNode(text))
}

// InsertMention inserts a mention token at offset.
func (w *Writer) InsertMention(offset int, m Mention) (*Node, error) {
	if strings.TrimSpace(m.ID) == "" {
		return nil, ErrEmptyMention
	}
	return w.insert(offset, MentionNode(m))
}

// InsertImage inserts an embedded image reference at offset.
func (w *Writer) InsertImage(offset int, img Image) (*Node, error) {
	if strings.TrimSpace(img.Src) == "" {
		return nil, fmt.Errorf("insert image: src is required")
	}
	return w.insert(offset, ImageNode(img))
}

func (w *Writer) insert(offset int, n *Node) (*Node, error) {
	offset = clamp(offset, 0, w.Len())
	idx, err := w.splitAt(offset)
	if err != nil {
		return nil, err
	}
	w.nextID++
	n.id = w.nextID
	w.nodes = append(w.nodes, nil)
	copy(w.nodes[idx+1:], w.nodes[idx:])
	w.nodes[idx] = n

	width := n.Width()
	shift := func(off int) int {
		if off >= offset {
			return off + width
		}
		return off
	}
	w.sel = Selection{Anchor: shift(w.sel.Anchor), Focus: shift(w.sel.Focus)}
	w.dirty = true
	return n, nil
}

// splitAt makes offset a node boundary and returns the index of the first
// node starting at or after it.
func (w *Writer) splitAt(offset int) (int, error) {
	pos := 0
	for i, n := range w.nodes {
		width := n.Width()
		end := pos + width
		if offset == pos {
			return i, nil
		}
		if offset < end {
			if n.Kind != KindText {
				return 0, ErrInsideToken
			}
			runes := []rune(n.Text)
			cut := offset - pos
			w.nextID++
			tail := &Node{id: w.nextID, Kind: KindText, Text: string(runes[cut:])}
			n.Text = string(runes[:cut])
			w.nodes = append(w.nodes, nil)
			copy(w.nodes[i+2:], w.nodes[i+1:])
			w.nodes[i+1] = tail
			return i + 1, nil
		}
		pos = end
	}
	return len(w.nodes), nil
}
