package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/dealroom/internal/conversation"
	"github.com/matheus3301/dealroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays one deal conversation: messages, the typing
// indicator and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	typing   *tview.TextView
	composer *Composer
	dealName string
	dealID   string
	now      func() time.Time
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	typing := tview.NewTextView().
		SetDynamicColors(true)
	typing.SetBackgroundColor(theme.BgColor)

	composer := NewComposer(theme)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(typing, 1, 0, false).
		AddItem(composer, 3, 0, false)

	return &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		typing:   typing,
		composer: composer,
		now:      time.Now,
	}
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.dealName != "" {
		return mt.dealName
	}
	return "Messages"
}

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// SetDeal sets the deal shown in the thread.
func (mt *MessageThread) SetDeal(id, name string) {
	mt.dealID = id
	mt.dealName = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))
	mt.messages.Clear()
	mt.typing.Clear()
}

// DealID returns the deal shown in the thread.
func (mt *MessageThread) DealID() string {
	return mt.dealID
}

// SetOnSend sets the callback when a message is submitted.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.composer.SetOnSend(fn)
}

// RestoreDraft returns text to the composer after a rejected send.
func (mt *MessageThread) RestoreDraft(text string) {
	mt.composer.Restore(text)
}

// SetOnKeystroke sets the callback for compose activity.
func (mt *MessageThread) SetOnKeystroke(fn func()) {
	mt.composer.SetOnKeystroke(fn)
}

// Update renders a conversation snapshot. Snapshots of another deal are ignored.
func (mt *MessageThread) Update(snap conversation.Snapshot) {
	if snap.DealID != mt.dealID {
		return
	}
	mt.messages.Clear()
	_, _ = fmt.Fprint(mt.messages, mt.renderMessages(snap))
	mt.messages.ScrollToEnd()

	mt.typing.Clear()
	_, _ = fmt.Fprint(mt.typing, mt.renderTyping(snap.Typing))
}

func (mt *MessageThread) renderMessages(snap conversation.Snapshot) string {
	if snap.Loading && len(snap.Messages) == 0 {
		return "\n [::d]Loading messages...[-:-:-]"
	}
	if len(snap.Messages) == 0 {
		return "\n [::d]No messages yet. Press i to start the conversation.[-:-:-]"
	}

	now := mt.now()
	var b strings.Builder
	for _, m := range snap.Messages {
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderEmail
		}
		color := mt.theme.PeerSenderColor
		if m.Own {
			sender = "You"
			color = mt.theme.OwnSenderColor
		}

		fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			ui.ColorName(color),
			tview.Escape(sanitizeForTerminal(sender)),
			formatTime(m.CreatedAt, now),
			mt.stateMarker(m.State),
			tview.Escape(sanitizeForTerminal(m.Content)),
		)
	}
	return b.String()
}

func (mt *MessageThread) stateMarker(s conversation.State) string {
	switch s {
	case conversation.StateSending:
		return fmt.Sprintf(" [%s]sending...[-]", ui.ColorName(mt.theme.PendingColor))
	case conversation.StateFailed:
		return fmt.Sprintf(" [%s::b]not sent[-:-:-]", ui.ColorName(mt.theme.FailedColor))
	default:
		return ""
	}
}

func (mt *MessageThread) renderTyping(names []string) string {
	if len(names) == 0 {
		return ""
	}
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = tview.Escape(sanitizeForTerminal(n))
	}
	var text string
	switch len(escaped) {
	case 1:
		text = escaped[0] + " is typing..."
	case 2:
		text = escaped[0] + " and " + escaped[1] + " are typing..."
	default:
		text = strings.Join(escaped[:len(escaped)-1], ", ") + " and " + escaped[len(escaped)-1] + " are typing..."
	}
	return fmt.Sprintf(" [%s::i]%s[-:-:-]", ui.ColorName(mt.theme.TypingColor), text)
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer.InputField
}
