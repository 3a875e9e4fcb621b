// Package notify carries user-facing notifications (toasts) from the data
// layer to whatever renders them.
package notify

import (
	"sync"
	"time"
)

// Level is the severity of a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// Notice is a single toast.
type Notice struct {
	Level       Level
	Title       string
	Description string
	Icon        string
	At          time.Time
}

// Notifier receives notices.
type Notifier interface {
	Notify(Notice)
}

// Func adapts a function to Notifier.
type Func func(Notice)

// Notify implements Notifier.
func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = Func(func(Notice) {})

// Success builds a success notice.
func Success(title, description string) Notice {
	return Notice{Level: LevelSuccess, Title: title, Description: description, Icon: "check-circle"}
}

const defaultQueueSize = 32

// Queue buffers notices until the UI drains them. The oldest notices are
// dropped once the queue is full.
type Queue struct {
	mu    sync.Mutex
	items []Notice
	max   int
	now   func() time.Time
}

// NewQueue returns a Queue holding at most max notices.
func NewQueue(max int) *Queue {
	if max <= 0 {
		max = defaultQueueSize
	}
	return &Queue{max: max, now: time.Now}
}

// Notify implements Notifier.
func (q *Queue) Notify(n Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n.At.IsZero() {
		n.At = q.now()
	}
	q.items = append(q.items, n)
	if over := len(q.items) - q.max; over > 0 {
		q.items = append([]Notice(nil), q.items[over:]...)
	}
}

// Drain returns all buffered notices and empties the queue.
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len returns the number of buffered notices.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
