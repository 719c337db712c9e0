package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mentioneditor/internal/editor"
	"mentioneditor/internal/gateway/session"
	"mentioneditor/internal/mention"
)

// EditingHandler serves the editing socket: the client forwards key and
// edit intents and receives the resulting document state.
type EditingHandler struct {
	sessions *session.Manager
}

func NewEditingHandler(sessions *session.Manager) *EditingHandler {
	return &EditingHandler{sessions: sessions}
}

const (
	editingWSWriteWait = 10 * time.Second
	editingWSPongWait  = 60 * time.Second
	editingWSPingEvery = (editingWSPongWait * 9) / 10
)

var editingWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type editingWSInbound struct {
	Type      string `json:"type"`
	KeyCode   int    `json:"keyCode,omitempty"`
	Key       string `json:"key,omitempty"`
	Text      string `json:"text,omitempty"`
	MentionID string `json:"mentionId,omitempty"`
	Offset    *int   `json:"offset,omitempty"`
}

type editingWSOutbound struct {
	Type    string           `json:"type"`
	State   *editor.Snapshot `json:"state,omitempty"`
	Handled bool             `json:"handled,omitempty"`
	Action  string           `json:"action,omitempty"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
}

func (h *EditingHandler) HandleEditingWS(w http.ResponseWriter, r *http.Request) {
	docID := strings.TrimSpace(r.PathValue("id"))
	if docID == "" {
		http.Error(w, "document id is required", http.StatusBadRequest)
		return
	}
	c, err := h.sessions.Open(r.Context(), docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := editingWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(editingWSPongWait)); err != nil {
		log.Printf("editing ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(editingWSPongWait))
	})

	writeCh := make(chan editingWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(editingWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(editingWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(editingWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	pushState(writeCh, c, editingWSOutbound{})

	for {
		var in editingWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		msgType := strings.ToLower(strings.TrimSpace(in.Type))
		switch msgType {
		case "":
			pushEditingWS(writeCh, editingWSOutbound{Type: "error", Code: "invalid_argument", Message: "type is required"})
		case "ping":
			pushEditingWS(writeCh, editingWSOutbound{Type: "pong"})
		case "get":
			pushState(writeCh, c, editingWSOutbound{})
		case "keydown":
			intent := mention.IntentFromKeyCode(in.KeyCode)
			if intent == mention.IntentOther && in.Key != "" {
				intent = mention.IntentFromKey(in.Key)
			}
			act := c.KeyDown(intent)
			pushState(writeCh, c, editingWSOutbound{Handled: act.Consumed(), Action: act.Kind.String()})
		case "set_caret":
			if in.Offset == nil {
				pushEditingWS(writeCh, editingWSOutbound{Type: "error", Code: "invalid_argument", Message: "offset is required"})
				continue
			}
			c.SetCaret(*in.Offset)
			pushState(writeCh, c, editingWSOutbound{})
		case "insert_text":
			if err := c.InsertText(in.Text); err != nil {
				pushEditingWS(writeCh, editingWSOutbound{Type: "error", Code: "failed_precondition", Message: err.Error()})
				continue
			}
			pushState(writeCh, c, editingWSOutbound{})
		case "insert_mention":
			if _, err := c.InsertMention(in.MentionID); err != nil {
				pushEditingWS(writeCh, editingWSOutbound{Type: "error", Code: "not_found", Message: err.Error()})
				continue
			}
			pushState(writeCh, c, editingWSOutbound{})
		case "undo":
			pushState(writeCh, c, editingWSOutbound{Handled: c.Undo()})
		case "redo":
			pushState(writeCh, c, editingWSOutbound{Handled: c.Redo()})
		default:
			pushEditingWS(writeCh, editingWSOutbound{Type: "error", Code: "invalid_argument", Message: "unsupported type: " + msgType})
		}
	}
}

func pushState(writeCh chan editingWSOutbound, c *editor.Context, out editingWSOutbound) {
	snap := c.Snapshot()
	out.Type = "state"
	out.State = &snap
	pushEditingWS(writeCh, out)
}

func pushEditingWS(writeCh chan editingWSOutbound, out editingWSOutbound) {
	if writeCh == nil {
		return
	}
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
