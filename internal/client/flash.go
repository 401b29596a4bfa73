package client

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// FlashKind tells success messages from error messages.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Display windows of flash messages.
const (
	SuccessFlashTTL = 3 * time.Second
	ErrorFlashTTL   = 5 * time.Second
)

// FlashMessage is a transient notice shown after an action.
type FlashMessage struct {
	Kind FlashKind
	Text string
}

// Flash holds at most one message, which expires on its own.
type Flash struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	msg     FlashMessage
	expires time.Time
}

// NewFlash creates an empty flash.
func NewFlash(clock clockwork.Clock) *Flash {
	return &Flash{clock: clock}
}

// Success shows text for SuccessFlashTTL.
func (f *Flash) Success(text string) { f.set(FlashMessage{Kind: FlashSuccess, Text: text}, SuccessFlashTTL) }

// Error shows text for ErrorFlashTTL.
func (f *Flash) Error(text string) { f.set(FlashMessage{Kind: FlashError, Text: text}, ErrorFlashTTL) }

func (f *Flash) set(msg FlashMessage, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msg = msg
	f.expires = f.clock.Now().Add(ttl)
}

// Current returns the message while it is still displayed.
func (f *Flash) Current() (FlashMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.msg.Text == "" || !f.clock.Now().Before(f.expires) {
		f.msg = FlashMessage{}
		return FlashMessage{}, false
	}
	return f.msg, true
}

// Clear removes the message.
func (f *Flash) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msg = FlashMessage{}
}
