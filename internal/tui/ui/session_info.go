package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"
)

// SessionData holds session information for display.
type SessionData struct {
	Session string
	User    string
	Role    string
	Channel string
	Online  bool
	Room    string
	Deals   int
	Since   time.Time
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}
	_, _ = fmt.Fprint(si, si.render(data))
}

func (si *SessionInfo) render(data *SessionData) string {
	fgColor := ColorName(si.theme.FgColor)
	counterColor := ColorName(si.theme.CounterColor)
	stateColor := ColorName(si.theme.OfflineColor)
	if data.Online {
		stateColor = ColorName(si.theme.OnlineColor)
	}

	user := data.User
	if data.Role != "" {
		user = fmt.Sprintf("%s (%s)", user, data.Role)
	}
	room := data.Room
	if room == "" {
		room = "-"
	}
	since := "-"
	if !data.Since.IsZero() {
		since = humanize.Time(data.Since)
	}

	return fmt.Sprintf(
		"[%s::b]Session:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Channel:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Room:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Deals:[-:-:-]   [%s]%d[-]\n"+
			"[%s::b]Started:[-:-:-] [%s]%s[-]",
		fgColor, counterColor, tview.Escape(data.Session),
		fgColor, counterColor, tview.Escape(user),
		fgColor, stateColor, data.Channel,
		fgColor, counterColor, tview.Escape(room),
		fgColor, counterColor, data.Deals,
		fgColor, counterColor, since,
	)
}
