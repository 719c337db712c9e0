package document

import (
	"errors"
	"strings"
)

var (
	ErrNestedChange = errors.New("document: change already in progress")
	ErrNodeNotFound = errors.New("document: node not found")
	ErrInsideToken  = errors.New("document: offset is inside a mention token")
	ErrEmptyMention = errors.New("document: mention id is required")
)

const maxUndoSteps = 200

// Selection is an anchor/focus pair of offsets. Anchor == Focus is a caret.
type Selection struct {
	Anchor int `json:"anchor"`
	Focus  int `json:"focus"`
}

// Collapsed reports whether the selection is a bare caret.
func (s Selection) Collapsed() bool { return s.Anchor == s.Focus }

// First is the lower of the two offsets.
func (s Selection) First() int {
	if s.Focus < s.Anchor {
		return s.Focus
	}
	return s.Anchor
}

// Caret is a position together with the nodes directly adjacent to it.
// Before and After are nil at the document edges and when Offset falls
// strictly inside a node.
type Caret struct {
	Offset int
	Before *Node
	After  *Node
}

type snapshot struct {
	nodes []*Node
	sel   Selection
}

// Document is an ordered sequence of inline nodes with a selection and an
// undo history. It is not safe for concurrent use; hosts serialize access.
type Document struct {
	nodes    []*Node
	sel      Selection
	nextID   uint64
	version  uint64
	undo     []snapshot
	redo     []snapshot
	inChange bool
}

// New builds a document from the given nodes with the caret at offset 0.
func New(nodes ...*Node) *Document {
	d := &Document{}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		c := n.clone()
		d.nextID++
		c.id = d.nextID
		d.nodes = append(d.nodes, c)
	}
	d.nodes = normalize(d.nodes)
	return d
}

// Len is the total width of the document in caret offsets.
func (d *Document) Len() int {
	return totalWidth(d.nodes)
}

func (d *Document) Version() uint64 { return d.version }

func (d *Document) Selection() Selection { return d.sel }

// Nodes returns a copy of the node sequence.
func (d *Document) Nodes() []*Node {
	return cloneNodes(d.nodes)
}

// Caret evaluates adjacency at the selection's first position.
func (d *Document) Caret() Caret {
	return d.CaretAt(d.sel.First())
}

// CaretAt returns adjacency information for offset, clamped to the document.
func (d *Document) CaretAt(offset int) Caret {
	offset = clamp(offset, 0, d.Len())
	before, after, inside := locate(d.nodes, offset)
	c := Caret{Offset: offset}
	if inside {
		return c
	}
	if before >= 0 {
		c.Before = d.nodes[before]
	}
	if after >= 0 {
		c.After = d.nodes[after]
	}
	return c
}

// Select moves the caret without recording an undo step. An offset inside
// a mention lands on the token's start.
func (d *Document) Select(offset int) {
	offset = snapOut(d.nodes, clamp(offset, 0, d.Len()))
	d.sel = Selection{Anchor: offset, Focus: offset}
}

// PositionBefore returns the offset at which node starts.
func (d *Document) PositionBefore(n *Node) (int, bool) {
	start, _, ok := span(d.nodes, n.ID())
	return start, ok
}

// PositionAfter returns the offset directly following node.
func (d *Document) PositionAfter(n *Node) (int, bool) {
	_, end, ok := span(d.nodes, n.ID())
	return end, ok
}

// Change runs fn against a working copy of the document. If fn returns nil
// and mutated anything, the copy is committed as a single undo step.
func (d *Document) Change(fn func(w *Writer) error) error {
	if d.inChange {
		return ErrNestedChange
	}
	w := &Writer{
		nodes:  cloneNodes(d.nodes),
		sel:    d.sel,
		nextID: d.nextID,
	}
	d.inChange = true
	err := fn(w)
	d.inChange = false
	if err != nil {
		return err
	}
	if !w.dirty {
		return nil
	}
	d.pushUndo(snapshot{nodes: d.nodes, sel: d.sel})
	d.redo = nil
	d.nodes = normalize(w.nodes)
	d.sel = clampSelection(d.nodes, w.sel)
	d.nextID = w.nextID
	d.version++
	return nil
}

func (d *Document) pushUndo(s snapshot) {
	d.undo = append(d.undo, s)
	if len(d.undo) > maxUndoSteps {
		d.undo = d.undo[len(d.undo)-maxUndoSteps:]
	}
}

func (d *Document) CanUndo() bool { return len(d.undo) > 0 }

func (d *Document) CanRedo() bool { return len(d.redo) > 0 }

// Undo restores the state before the most recent change.
func (d *Document) Undo() bool {
	if len(d.undo) == 0 || d.inChange {
		return false
	}
	prev := d.undo[len(d.undo)-1]
	d.undo = d.undo[:len(d.undo)-1]
	d.redo = append(d.redo, snapshot{nodes: d.nodes, sel: d.sel})
	d.nodes, d.sel = prev.nodes, prev.sel
	d.version++
	return true
}

// Redo reapplies the most recently undone change.
func (d *Document) Redo() bool {
	if len(d.redo) == 0 || d.inChange {
		return false
	}
	next := d.redo[len(d.redo)-1]
	d.redo = d.redo[:len(d.redo)-1]
	d.pushUndo(snapshot{nodes: d.nodes, sel: d.sel})
	d.nodes, d.sel = next.nodes, next.sel
	d.version++
	return true
}

// Mentions lists the mention payloads in document order.
func (d *Document) Mentions() []Mention {
	out := make([]Mention, 0, 4)
	for _, n := range d.nodes {
		if n.IsMention() {
			out = append(out, *n.Mention)
		}
	}
	return out
}

// PlainText renders text runs and mention display text.
func (d *Document) PlainText() string {
	var b strings.Builder
	for _, n := range d.nodes {
		switch n.Kind {
		case KindText, KindMention:
			b.WriteString(n.Text)
		case KindImage:
		}
	}
	return b.String()
}

func locate(nodes []*Node, offset int) (before, after int, inside bool) {
	before, after = -1, -1
	pos := 0
	for i, n := range nodes {
		end := pos + n.Width()
		switch {
		case offset == pos:
			after = i
			return before, after, false
		case offset < end:
			return -1, -1, true
		}
		before = i
		pos = end
	}
	return before, -1, false
}

func span(nodes []*Node, id uint64) (start, end int, ok bool) {
	if id == 0 {
		return 0, 0, false
	}
	pos := 0
	for _, n := range nodes {
		w := n.Width()
		if n.id == id {
			return pos, pos + w, true
		}
		pos += w
	}
	return 0, 0, false
}

func totalWidth(nodes []*Node) int {
	total := 0
	for _, n := range nodes {
		total += n.Width()
	}
	return total
}

// normalize drops empty text runs and merges adjacent ones.
func normalize(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind == KindText && n.Text == "" {
			continue
		}
		if n.Kind == KindText && len(out) > 0 {
			last := out[len(out)-1]
			if last.Kind == KindText {
				last.Text += n.Text
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func cloneNodes(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.clone()
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampSelection keeps both ends within the document and outside any
// mention span.
func clampSelection(nodes []*Node, s Selection) Selection {
	limit := totalWidth(nodes)
	return Selection{
		Anchor: snapOut(nodes, clamp(s.Anchor, 0, limit)),
		Focus:  snapOut(nodes, clamp(s.Focus, 0, limit)),
	}
}

// snapOut moves an offset that falls strictly inside a mention to the
// position before it.
func snapOut(nodes []*Node, offset int) int {
	pos := 0
	for _, n := range nodes {
		end := pos + n.Width()
		if offset < end {
			if offset > pos && n.IsMention() {
				return pos
			}
			return offset
		}
		pos = end
	}
	return offset
}
