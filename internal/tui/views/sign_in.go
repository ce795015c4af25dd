package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/dealroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// SignIn is the email/password form shown when no session is stored.
type SignIn struct {
	*tview.Flex
	theme    *ui.Theme
	form     *tview.Form
	message  *tview.TextView
	onSubmit func(email, password string)
	onCancel func()
}

// NewSignIn creates the sign-in form. email pre-fills the address field.
func NewSignIn(theme *ui.Theme, email string) *SignIn {
	s := &SignIn{theme: theme}

	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitle(" Sign in ")
	form.SetTitleColor(theme.TitleColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.TableCursorBg)
	form.SetButtonTextColor(theme.TableCursorFg)

	form.AddInputField("Email", email, 40, nil, nil)
	form.AddPasswordField("Password", "", 40, '*', nil)
	form.AddButton("Sign in", s.submit)
	form.AddButton("Quit", func() {
		if s.onCancel != nil {
			s.onCancel()
		}
	})
	form.SetCancelFunc(func() {
		if s.onCancel != nil {
			s.onCancel()
		}
	})
	form.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		// Enter on the password field submits directly.
		if ev.Key() == tcell.KeyEnter {
			if idx, _ := form.GetFocusedItemIndex(); idx == 1 {
				s.submit()
				return nil
			}
		}
		return ev
	})

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	message.SetBackgroundColor(theme.BgColor)

	s.form = form
	s.message = message
	s.Flex = tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(form, 9, 0, true).
			AddItem(message, 2, 0, false).
			AddItem(nil, 0, 1, false), 60, 0, true).
		AddItem(nil, 0, 1, false)
	return s
}

// Name implements Component.
func (s *SignIn) Name() string { return "Sign in" }

// Hints implements Component.
func (s *SignIn) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Sign in"},
		{Key: "Esc", Description: "Quit"},
	}
}

// SetOnSubmit sets the callback for a completed form.
func (s *SignIn) SetOnSubmit(fn func(email, password string)) {
	s.onSubmit = fn
}

// SetOnCancel sets the callback when the user gives up.
func (s *SignIn) SetOnCancel(fn func()) {
	s.onCancel = fn
}

func (s *SignIn) submit() {
	email := s.form.GetFormItemByLabel("Email").(*tview.InputField).GetText()
	password := s.form.GetFormItemByLabel("Password").(*tview.InputField).GetText()
	if email == "" || password == "" {
		s.ShowError("Email and password are required")
		return
	}
	if s.onSubmit != nil {
		s.ShowMessage("Signing in...")
		s.onSubmit(email, password)
	}
}

// ShowMessage displays a status line under the form.
func (s *SignIn) ShowMessage(msg string) {
	s.message.Clear()
	s.message.SetText(tview.Escape(msg))
}

// ShowError displays an error line under the form.
func (s *SignIn) ShowError(msg string) {
	s.message.Clear()
	s.message.SetText("[" + ui.ColorName(s.theme.FlashErrColor) + "]" + tview.Escape(msg) + "[-]")
}
