package document

import "unicode/utf8"

// Kind classifies an inline node.
type Kind int

const (
	KindText Kind = iota
	KindMention
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMention:
		return "mention"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// Mention is the payload of a mention token.
type Mention struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	UID    string `json:"uid"`
}

// Image is the payload of an embedded remote resource.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// Node is one inline item of a Document. Exactly one payload field is
// meaningful, selected by Kind.
type Node struct {
	id      uint64
	Kind    Kind
	Text    string
	Mention *Mention
	Image   *Image
}

// ID is the document-unique identity assigned on insertion.
func (n *Node) ID() uint64 {
	if n == nil {
		return 0
	}
	return n.id
}

// IsMention reports whether n is a mention token. Safe on nil.
func (n *Node) IsMention() bool {
	return n != nil && n.Kind == KindMention && n.Mention != nil
}

// Width is the number of caret offsets the node occupies.
func (n *Node) Width() int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case KindText, KindMention:
		return utf8.RuneCountInString(n.Text)
	case KindImage:
		return 1
	default:
		return 0
	}
}

func (n *Node) clone() *Node {
	out := *n
	if n.Mention != nil {
		m := *n.Mention
		out.Mention = &m
	}
	if n.Image != nil {
		img := *n.Image
		out.Image = &img
	}
	return &out
}

// TextNode builds a plain text run.
func TextNode(text string) *Node {
	return &Node{Kind: KindText, Text: text}
}

// MentionNode builds a mention token. The display text is the mention ID.
func MentionNode(m Mention) *Node {
	return &Node{Kind: KindMention, Text: m.ID, Mention: &m}
}

// ImageNode builds an embedded image reference.
func ImageNode(img Image) *Node {
	return &Node{Kind: KindImage, Image: &img}
}
