package session

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
)

// EventKind classifies an activity entry
type EventKind string

const (
	KindScan       EventKind = "scan"
	KindConnect    EventKind = "connect"
	KindSelect     EventKind = "select"
	KindSend       EventKind = "send"
	KindDisconnect EventKind = "disconnect"
	KindAlert      EventKind = "alert"
)

// Event is one line of the activity log
type Event struct {
	At      time.Time
	Kind    EventKind
	Message string
}

func (e Event) String() string {
	return fmt.Sprintf("%s %-10s %s", e.At.Format("15:04:05"), e.Kind, e.Message)
}

// activityLog keeps the most recent events, overwriting the oldest
type activityLog struct {
	buf         mpmc.RichOverlappedRingBuffer[Event]
	overwritten atomic.Uint64
}

func newActivityLog(size uint32) *activityLog {
	return &activityLog{buf: mpmc.NewOverlappedRingBuffer[Event](size)}
}

func (l *activityLog) add(kind EventKind, format string, args ...any) {
	overwrites, err := l.buf.EnqueueM(Event{
		At:      time.Now(),
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
	if err == nil && overwrites > 0 {
		l.overwritten.Add(uint64(overwrites))
	}
}

// drain removes and returns the buffered events, oldest first
func (l *activityLog) drain() []Event {
	var out []Event
	for !l.buf.IsEmpty() {
		ev, err := l.buf.Dequeue()
		if err != nil {
			break
		}
		out = append(out, ev)
	}
	return out
}
