package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/dealroom/internal/status"
	"github.com/matheus3301/dealroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar displays the realtime channel state.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	session string
	state   status.State
	room    string
	dropped uint64
	now     func() time.Time
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme, session string) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	sb := &StatusBar{TextView: tv, theme: theme, session: session, state: status.Disconnected, now: time.Now}
	sb.render()
	return sb
}

// SetState updates the channel state display.
func (sb *StatusBar) SetState(s status.State, room string) {
	sb.state = s
	sb.room = room
	sb.render()
}

// SetDropped shows how many bus events were dropped by slow consumers.
func (sb *StatusBar) SetDropped(n uint64) {
	sb.dropped = n
	sb.render()
}

// Tick redraws the clock.
func (sb *StatusBar) Tick() {
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line())
}

func (sb *StatusBar) line() string {
	color := sb.theme.OfflineColor
	switch sb.state {
	case status.Connected, status.Joined:
		color = sb.theme.OnlineColor
	case status.Connecting:
		color = sb.theme.FlashWarnColor
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-]", tview.Escape(sb.session), ui.ColorName(color), sb.state)
	if sb.room != "" {
		line += " " + tview.Escape(sb.room)
	}
	if sb.dropped > 0 {
		line += fmt.Sprintf(" | [%s]%d dropped[-]", ui.ColorName(sb.theme.FlashWarnColor), sb.dropped)
	}
	return line + " | " + sb.now().Format("15:04")
}
