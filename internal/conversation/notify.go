package conversation

import "github.com/matheus3301/dealroom/internal/bus"

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// User-facing failure texts.
const (
	TextLoadFailed = "Failed to load messages"
	TextSendFailed = "Failed to send message"
)

// Notification is a transient, dismissable message for the user.
type Notification struct {
	Level  Level
	Text   string
	Detail string
}

type Notifier interface {
	Notify(Notification)
}

// BusNotifier publishes notifications as notify.flash events.
type BusNotifier struct {
	Bus *bus.Bus
}

func (n BusNotifier) Notify(note Notification) {
	n.Bus.Publish(bus.NewEvent(bus.KindNotify, note))
}
