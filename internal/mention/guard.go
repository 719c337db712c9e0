// Package mention keeps mention tokens atomic under keyboard editing and
// serves the mention feed.
package mention

import "mentioneditor/internal/document"

// ActionKind is the rewrite chosen for a key intent.
type ActionKind int

const (
	PassThrough ActionKind = iota
	RemoveNodeBefore
	RemoveNodeAfter
	MoveCaretBefore
	MoveCaretAfter
)

func (k ActionKind) String() string {
	switch k {
	case RemoveNodeBefore:
		return "RemoveNodeBefore"
	case RemoveNodeAfter:
		return "RemoveNodeAfter"
	case MoveCaretBefore:
		return "MoveCaretBefore"
	case MoveCaretAfter:
		return "MoveCaretAfter"
	default:
		return "PassThrough"
	}
}

// Action is the outcome of Decide. Node is the token acted on and Target
// the resulting caret offset; both are zero for PassThrough.
type Action struct {
	Kind   ActionKind
	Node   *document.Node
	Target int
}

// Consumed reports whether default key handling must be suppressed.
func (a Action) Consumed() bool {
	return a.Kind != PassThrough
}

var passThrough = Action{Kind: PassThrough}

// Decide maps a caret and key intent to an action. It reads doc only to
// resolve offsets and never mutates it. The first matching rule wins.
func Decide(doc *document.Document, caret document.Caret, intent Intent) Action {
	before, after := caret.Before, caret.After

	switch {
	case intent == IntentBackspace && before.IsMention():
		start, ok := doc.PositionBefore(before)
		if !ok {
			return passThrough
		}
		return Action{Kind: RemoveNodeBefore, Node: before, Target: start}
	case intent == IntentDelete && after.IsMention():
		return Action{Kind: RemoveNodeAfter, Node: after, Target: caret.Offset}
	case !before.IsMention() && !after.IsMention():
		return passThrough
	}

	switch intent {
	case IntentArrowRight:
		if !after.IsMention() {
			return passThrough
		}
		end, ok := doc.PositionAfter(after)
		if !ok {
			return passThrough
		}
		return Action{Kind: MoveCaretAfter, Node: after, Target: end}
	case IntentArrowLeft:
		if !before.IsMention() {
			return passThrough
		}
		start, ok := doc.PositionBefore(before)
		if !ok {
			return passThrough
		}
		return Action{Kind: MoveCaretBefore, Node: before, Target: start}
	default:
		return passThrough
	}
}

// Guard applies Decide to a live document.
type Guard struct{}

func NewGuard() *Guard { return &Guard{} }

// HandleKey evaluates intent at the document caret. A consumed action is
// applied as exactly one change; PassThrough leaves the document alone.
// If the change cannot be applied the result degrades to PassThrough.
func (g *Guard) HandleKey(doc *document.Document, intent Intent) Action {
	if doc == nil {
		return passThrough
	}
	act := Decide(doc, doc.Caret(), intent)
	if !act.Consumed() {
		return act
	}
	err := doc.Change(func(w *document.Writer) error {
		switch act.Kind {
		case RemoveNodeBefore, RemoveNodeAfter:
			if err := w.Remove(act.Node); err != nil {
				return err
			}
		case MoveCaretBefore, MoveCaretAfter:
		}
		w.SetSelection(act.Target)
		return nil
	})
	if err != nil {
		return passThrough
	}
	return act
}
