package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/dealroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// Composer is the text input for sending messages. Every edit is reported
// as a keystroke so peers see the typing indicator.
type Composer struct {
	*tview.InputField
	onSend      func(text string)
	onKeystroke func()
	restoring   bool
}

// NewComposer creates a new message composer.
func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	input.SetBorder(true)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetTitle(" Compose (i to focus) ")
	input.SetTitleColor(theme.TitleColor)

	c := &Composer{InputField: input}

	input.SetChangedFunc(func(text string) {
		if text != "" && !c.restoring && c.onKeystroke != nil {
			c.onKeystroke()
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && c.onSend != nil {
			text := c.GetText()
			if text != "" {
				c.SetText("")
				c.onSend(text)
			}
		}
	})

	return c
}

// SetOnSend sets the callback when a message is sent.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// Restore puts back a draft whose send never started. Text typed since
// the submit is kept.
func (c *Composer) Restore(text string) bool {
	if c.GetText() != "" {
		return false
	}
	c.restoring = true
	c.SetText(text)
	c.restoring = false
	return true
}

// SetOnKeystroke sets the callback for compose activity.
func (c *Composer) SetOnKeystroke(fn func()) {
	c.onKeystroke = fn
}
