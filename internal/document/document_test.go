package document

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() *Document {
	return New(
		TextNode("hi "),
		MentionNode(Mention{ID: "@Alex", UserID: "1", UID: "u-1"}),
		TextNode(" there"),
	)
}

func TestCaretAtAdjacency(t *testing.T) {
	d := sampleDoc()
	require.Equal(t, 3+5+6, d.Len())

	c := d.CaretAt(3)
	require.NotNil(t, c.Before)
	require.NotNil(t, c.After)
	assert.Equal(t, KindText, c.Before.Kind)
	assert.True(t, c.After.IsMention())

	c = d.CaretAt(8)
	assert.True(t, c.Before.IsMention())
	assert.Equal(t, KindText, c.After.Kind)

	c = d.CaretAt(5)
	assert.Nil(t, c.Before)
	assert.Nil(t, c.After)

	c = d.CaretAt(1)
	assert.Nil(t, c.Before)
	assert.Nil(t, c.After)

	c = d.CaretAt(0)
	assert.Nil(t, c.Before)
	assert.Equal(t, KindText, c.After.Kind)

	c = d.CaretAt(100)
	assert.Equal(t, d.Len(), c.Offset)
	assert.Nil(t, c.After)
	assert.Equal(t, KindText, c.Before.Kind)
}

func TestChangeIsOneUndoStep(t *testing.T) {
	d := sampleDoc()
	d.Select(8)
	mention := d.CaretAt(8).Before

	err := d.Change(func(w *Writer) error {
		if err := w.Remove(mention); err != nil {
			return err
		}
		w.SetSelection(3)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hi  there", d.PlainText())
	assert.Equal(t, 3, d.Selection().First())
	assert.Empty(t, d.Mentions())
	assert.Equal(t, uint64(1), d.Version())

	require.True(t, d.Undo())
	assert.Equal(t, "hi @Alex there", d.PlainText())
	assert.Equal(t, 8, d.Selection().First())
	assert.False(t, d.CanUndo())

	require.True(t, d.Redo())
	assert.Equal(t, "hi  there", d.PlainText())
}

func TestRemoveShiftsCaretToTokenStart(t *testing.T) {
	d := sampleDoc()
	d.Select(8)
	mention := d.CaretAt(8).Before
	require.NoError(t, d.Change(func(w *Writer) error { return w.Remove(mention) }))
	assert.Equal(t, 3, d.Selection().First())
	// Text runs on both sides merge after the token disappears.
	assert.Len(t, d.Nodes(), 1)
}

func TestFailedChangeLeavesDocumentUntouched(t *testing.T) {
	d := sampleDoc()
	boom := errors.New("boom")
	err := d.Change(func(w *Writer) error {
		if _, err := w.InsertText(0, "xx"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "hi @Alex there", d.PlainText())
	assert.Equal(t, uint64(0), d.Version())
	assert.False(t, d.CanUndo())
}

func TestEmptyChangeRecordsNothing(t *testing.T) {
	d := sampleDoc()
	require.NoError(t, d.Change(func(*Writer) error { return nil }))
	assert.False(t, d.CanUndo())
	assert.Equal(t, uint64(0), d.Version())
}

func TestNestedChangeRejected(t *testing.T) {
	d := sampleDoc()
	var inner error
	require.NoError(t, d.Change(func(w *Writer) error {
		inner = d.Change(func(*Writer) error { return nil })
		return nil
	}))
	assert.ErrorIs(t, inner, ErrNestedChange)
}

func TestInsertInsideMentionRejected(t *testing.T) {
	d := sampleDoc()
	err := d.Change(func(w *Writer) error {
		_, err := w.InsertText(5, "x")
		return err
	})
	assert.ErrorIs(t, err, ErrInsideToken)
	assert.Equal(t, "hi @Alex there", d.PlainText())
}

func TestInsertSplitsTextAndMovesCaret(t *testing.T) {
	d := New(TextNode("helo"))
	d.Select(3)
	require.NoError(t, d.Change(func(w *Writer) error {
		_, err := w.InsertMention(2, Mention{ID: "@Clare", UserID: "3"})
		return err
	}))
	assert.Equal(t, "he@Clarelo", d.PlainText())
	assert.Equal(t, 9, d.Selection().First())
	nodes := d.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, KindMention, nodes[1].Kind)

	err := d.Change(func(w *Writer) error {
		_, err := w.InsertMention(0, Mention{})
		return err
	})
	assert.ErrorIs(t, err, ErrEmptyMention)
}

func TestImageOccupiesOneOffset(t *testing.T) {
	d := New(TextNode("ab"))
	require.NoError(t, d.Change(func(w *Writer) error {
		_, err := w.InsertImage(1, Image{Src: "https://cdn/x.png"})
		return err
	}))
	assert.Equal(t, 3, d.Len())
	c := d.CaretAt(2)
	require.NotNil(t, c.Before)
	assert.Equal(t, KindImage, c.Before.Kind)
	assert.Equal(t, "ab", d.PlainText())
}

func TestRemoveUnknownNode(t *testing.T) {
	d := sampleDoc()
	stray := TextNode("x")
	err := d.Change(func(w *Writer) error { return w.Remove(stray) })
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestSelectNeverLandsInsideMention(t *testing.T) {
	d := sampleDoc()
	for off := 4; off < 8; off++ {
		d.Select(off)
		assert.Equal(t, 3, d.Selection().First(), "offset %d", off)
		c := d.Caret()
		assert.True(t, c.After.IsMention())
	}
	d.Select(8)
	assert.Equal(t, 8, d.Selection().First())

	require.NoError(t, d.Change(func(w *Writer) error {
		w.SetSelection(6)
		return nil
	}))
	assert.Equal(t, 3, d.Selection().First())

	// The snapped caret is editable again.
	require.NoError(t, d.Change(func(w *Writer) error {
		_, err := w.InsertText(d.Selection().First(), "x")
		return err
	}))
	assert.Equal(t, "hi x@Alex there", d.PlainText())
}

func TestDeleteAtRemovesOneUnit(t *testing.T) {
	d := New(TextNode("héllo"), ImageNode(Image{Src: "https://cdn/a.png"}), TextNode("!"))
	d.Select(5)
	require.NoError(t, d.Change(func(w *Writer) error { return w.DeleteAt(1) }))
	assert.Equal(t, "hllo!", d.PlainText())
	assert.Equal(t, 4, d.Selection().First())

	require.NoError(t, d.Change(func(w *Writer) error { return w.DeleteAt(4) }))
	assert.Equal(t, 5, d.Len())
	assert.Equal(t, KindText, d.Nodes()[0].Kind)
	require.Len(t, d.Nodes(), 1)

	err := sampleDoc().Change(func(w *Writer) error { return w.DeleteAt(4) })
	assert.ErrorIs(t, err, ErrInsideToken)

	require.NoError(t, d.Change(func(w *Writer) error { return w.DeleteAt(99) }))
	assert.Equal(t, uint64(2), d.Version())
}
