package mention

import "strings"

// Intent is a navigation or deletion key the guard knows about.
type Intent int

const (
	IntentOther Intent = iota
	IntentBackspace
	IntentDelete
	IntentArrowLeft
	IntentArrowRight
)

// DOM key codes as delivered by keydown events.
const (
	KeyCodeBackspace  = 8
	KeyCodeArrowLeft  = 37
	KeyCodeArrowRight = 39
	KeyCodeDelete     = 46
)

func IntentFromKeyCode(code int) Intent {
	switch code {
	case KeyCodeBackspace:
		return IntentBackspace
	case KeyCodeDelete:
		return IntentDelete
	case KeyCodeArrowLeft:
		return IntentArrowLeft
	case KeyCodeArrowRight:
		return IntentArrowRight
	default:
		return IntentOther
	}
}

// IntentFromKey maps a KeyboardEvent.key name.
func IntentFromKey(key string) Intent {
	switch strings.TrimSpace(key) {
	case "Backspace":
		return IntentBackspace
	case "Delete":
		return IntentDelete
	case "ArrowLeft":
		return IntentArrowLeft
	case "ArrowRight":
		return IntentArrowRight
	default:
		return IntentOther
	}
}

func (i Intent) String() string {
	switch i {
	case IntentBackspace:
		return "Backspace"
	case IntentDelete:
		return "Delete"
	case IntentArrowLeft:
		return "ArrowLeft"
	case IntentArrowRight:
		return "ArrowRight"
	default:
		return "Other"
	}
}
