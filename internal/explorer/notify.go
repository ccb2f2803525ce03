package explorer

import (
	"sync"
	"time"
)

// Notification titles shown to the user.
const (
	TitleAuthentication = "Authentication Error"
	TitleDataLoading    = "Data Loading Error"
)

// Level is the severity of a notification.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notification is a user-visible, non-blocking message.
type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notifications produced while loading.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

// Inbox collects notifications until they are drained by the front-end.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
}

// Notify implements Notifier.
func (in *Inbox) Notify(n Notification) {
	in.mu.Lock()
	in.items = append(in.items, n)
	in.mu.Unlock()
}

// Drain returns and clears the pending notifications.
func (in *Inbox) Drain() []Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := in.items
	in.items = nil
	return out
}

// Pending returns the number of undrained notifications.
func (in *Inbox) Pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.items)
}
