package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/dealroom/internal/tui/model"
	"github.com/matheus3301/dealroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// DealInfo displays a deal's terms, negotiation history and documents.
type DealInfo struct {
	*tview.TextView
	theme *ui.Theme
	now   func() time.Time
}

// NewDealInfo creates a new deal info view.
func NewDealInfo(theme *ui.Theme) *DealInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Deal Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &DealInfo{
		TextView: tv,
		theme:    theme,
		now:      time.Now,
	}
}

// Name implements Component.
func (di *DealInfo) Name() string { return "Details" }

// Hints implements Component.
func (di *DealInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":price <amount>", Description: "Propose"},
		{Key: ":status <s>", Description: "Change status"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders deal details.
func (di *DealInfo) Update(detail *model.DealDetail) {
	di.Clear()
	if detail == nil {
		return
	}
	_, _ = fmt.Fprint(di, di.render(detail))
	di.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(detail.Deal.Title)))
}

func (di *DealInfo) render(detail *model.DealDetail) string {
	fg := ui.ColorName(di.theme.FgColor)
	ct := ui.ColorName(di.theme.CounterColor)
	d := detail.Deal
	now := di.now()

	var b strings.Builder
	field := func(label, value string) {
		fmt.Fprintf(&b, " [%s::b]%-14s[-:-:-] [%s]%s[-]\n", fg, label+":", ct, tview.Escape(sanitizeForTerminal(value)))
	}

	b.WriteString("\n")
	field("Title", d.Title)
	field("Status", d.Status)
	field("Initial price", FormatPrice(d.InitialPrice))
	field("Current price", FormatPrice(d.CurrentPrice))
	field("Buyer", d.Buyer.Name)
	field("Seller", d.Seller.Name)
	field("Created", formatAgo(d.CreatedAt, now))
	field("Updated", formatAgo(d.UpdatedAt, now))
	if d.Description != "" {
		fmt.Fprintf(&b, "\n [%s::b]Description[-:-:-]\n %s\n", fg, tview.Escape(sanitizeForTerminal(d.Description)))
	}

	fmt.Fprintf(&b, "\n [%s::b]Price history[-:-:-]\n", fg)
	if len(d.PriceHistory) == 0 {
		b.WriteString(" [::d]none[-:-:-]\n")
	}
	for _, p := range d.PriceHistory {
		fmt.Fprintf(&b, " [%s]%12s[-]  %s  [::d]%s[-:-:-]\n",
			ct, FormatPrice(p.Price), tview.Escape(p.ProposedBy.Name), formatAgo(p.Timestamp, now))
	}

	fmt.Fprintf(&b, "\n [%s::b]Documents[-:-:-]\n", fg)
	if len(detail.Documents) == 0 {
		b.WriteString(" [::d]none[-:-:-]\n")
	}
	for _, doc := range detail.Documents {
		fmt.Fprintf(&b, " %s  [%s]%s[-]  [::d]%s by %s[-:-:-]\n",
			tview.Escape(sanitizeForTerminal(doc.FileName)), ct, humanize.Bytes(uint64(max(doc.FileSize, 0))),
			formatAgo(doc.CreatedAt, now), tview.Escape(doc.UploadedBy.Name))
	}
	return b.String()
}
