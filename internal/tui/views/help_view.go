package views

import (
	"fmt"

	"github.com/matheus3301/dealroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	kc := ui.ColorName(hv.theme.MenuKeyColor)
	key := func(k string) string { return fmt.Sprintf("[%s]%s[-:-:-]", kc, k) }

	help := fmt.Sprintf(`
  [::b]Global Keys[-:-:-]

  %-22s Command mode        %-18s Cancel / Go back
  %-22s Filter deals        %-18s Help
  %-22s Quit                %-18s Quit immediately

  [::b]Deal List[-:-:-]

  %-22s Open conversation   %-18s Deal details
  %-22s Jump to Nth deal    %-18s Refresh from server
  %-22s Search archive

  [::b]Conversation[-:-:-]

  %-22s Focus composer      %-18s Deal details
  %-22s Exit composer       %-18s Send message

  [::b]Commands (: mode)[-:-:-]

  %s    Search archived messages
  %s        Open a deal by title
  %s  Show deals with one status (empty for all)
  %s     Propose a price on the open deal
  %s       Change the status of the open deal
  %s                Sign out and quit
  %s / %s             Show this help
  %s / %s             Quit application
`,
		key(":"), key("Esc"),
		key("/"), key("?"),
		key("q"), key("Ctrl-C"),
		key("Enter"), key("d"),
		key("1-9"), key("r"),
		key("s"),
		key("i"), key("d"),
		key("Esc"), key("Enter"),
		key(":search <query>"),
		key(":deal <title>"),
		key(":filter <status>"),
		key(":price <amount>"),
		key(":status <status>"),
		key(":logout"),
		key(":help"), key(":h"),
		key(":quit"), key(":q"),
	)

	_, _ = fmt.Fprint(hv, help)
}
