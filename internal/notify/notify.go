// Package notify turns sync outcomes into user-facing notices and fans them
// out to sinks: structured logs for operators and a bounded history the view
// polls to render modals and toasts.
package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/JakeFAU/studysync/internal/store"
)

// Kind selects how the view presents a notice.
type Kind string

// Supported notice kinds.
const (
	// KindModal blocks the view until dismissed.
	KindModal Kind = "modal"
	// KindToast is a transient, non-blocking message.
	KindToast Kind = "toast"
)

// Severity classifies a notice for colouring.
type Severity string

// Supported severities.
const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityError   Severity = "error"
)

// Action is a call to action attached to a modal.
type Action string

// Supported actions.
const (
	ActionLogin Action = "login"
	ActionRetry Action = "retry"
)

// Operation names what was being attempted when a failure occurred.
type Operation string

// Operations that can fail.
const (
	OpIdentify Operation = "identify"
	OpLoad     Operation = "load"
	OpSave     Operation = "save"
	OpStats    Operation = "stats"
)

// Notice is one message for the view.
type Notice struct {
	Kind     Kind      `json:"kind"`
	Severity Severity  `json:"severity"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Actions  []Action  `json:"actions,omitempty"`
	Op       Operation `json:"op,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(n Notice)
}

// Nop discards every notice.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(Notice) {}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(n Notice) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(n)
		}
	}
}

// FromError maps a failed operation onto the notice the view should show.
// Session failures get a blocking modal with a login action; load failures a
// modal offering retry; save failures only a toast since the update stays
// queued and is retried silently.
func FromError(op Operation, err error) Notice {
	n := Notice{Severity: SeverityError, Op: op}
	switch {
	case errors.Is(err, store.ErrUnauthenticated):
		n.Kind = KindModal
		n.Title = "Session expired"
		n.Message = "Please sign in again to keep tracking your progress."
		n.Actions = []Action{ActionLogin}
	case errors.Is(err, store.ErrRateLimited):
		n.Kind = KindModal
		n.Title = "Too many requests"
		n.Message = "Please wait a moment before trying again."
	case errors.Is(err, store.ErrOffline):
		n.Title = "Offline"
		n.Message = "Check your internet connection."
		n.Kind = KindModal
		n.Actions = []Action{ActionRetry}
		if op == OpSave {
			n.Kind = KindToast
			n.Actions = nil
			n.Message = "Your progress is kept and will be saved once you are back online."
		}
	default:
		n.Title = "Connection error"
		n.Message = "There was a problem talking to the server. Please try again shortly."
		n.Kind = KindModal
		n.Actions = []Action{ActionRetry}
		if op == OpSave {
			n.Kind = KindToast
			n.Actions = nil
			n.Message = "Saving progress failed; it will be retried automatically."
		}
	}
	return n
}

// GoalToggled is the toast shown after a goal checkbox changes.
func GoalToggled(completed bool) Notice {
	if completed {
		return Notice{Kind: KindToast, Severity: SeveritySuccess, Title: "Goal achieved!", Op: OpSave}
	}
	return Notice{Kind: KindToast, Severity: SeverityInfo, Title: "Goal unchecked", Op: OpSave}
}

// Recorder keeps the most recent notices in memory for the view to poll.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	notices []Notice
	now     func() time.Time
}

const defaultHistory = 50

// NewRecorder keeps up to limit notices (default 50).
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = defaultHistory
	}
	return &Recorder{limit: limit, now: time.Now}
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.At.IsZero() {
		n.At = r.now().UTC()
	}
	r.notices = append(r.notices, n)
	if over := len(r.notices) - r.limit; over > 0 {
		r.notices = append([]Notice(nil), r.notices[over:]...)
	}
}

// Recent returns up to n notices, newest last. n <= 0 returns all.
func (r *Recorder) Recent(n int) []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := 0
	if n > 0 && len(r.notices) > n {
		start = len(r.notices) - n
	}
	return append([]Notice(nil), r.notices[start:]...)
}
