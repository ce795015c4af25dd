package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/dealroom/internal/tui/model"
	"github.com/matheus3301/dealroom/internal/tui/ui"
	"github.com/rivo/tview"
)

// DealList is the main deal list view, ordered by latest message activity.
type DealList struct {
	*tview.Table
	theme  *ui.Theme
	deals  []model.DealRow
	filter string
	status string
	now    func() time.Time
}

// NewDealList creates a new deal list table.
func NewDealList(theme *ui.Theme) *DealList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Deals ")
	table.SetTitleColor(theme.TitleColor)

	return &DealList{
		Table: table,
		theme: theme,
		now:   time.Now,
	}
}

// Name implements Component.
func (dl *DealList) Name() string { return "Deals" }

// Hints implements Component.
func (dl *DealList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "d", Description: "Details"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "r", Description: "Refresh"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update refreshes the list with new data.
func (dl *DealList) Update(deals []model.DealRow, status string) {
	dl.deals = deals
	dl.status = status
	dl.render()
}

// SetFilter sets the active title filter and re-renders.
func (dl *DealList) SetFilter(filter string) {
	dl.filter = filter
	dl.render()
}

// ClearFilter clears the active filter.
func (dl *DealList) ClearFilter() {
	dl.filter = ""
	dl.render()
}

func (dl *DealList) visible() []model.DealRow {
	if dl.filter == "" {
		return dl.deals
	}
	var out []model.DealRow
	for _, d := range dl.deals {
		if containsFold(d.Title, dl.filter) || containsFold(d.Counterparty, dl.filter) || containsFold(d.Preview, dl.filter) {
			out = append(out, d)
		}
	}
	return out
}

func (dl *DealList) render() {
	dl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" TITLE", 2},
		{" WITH", 1},
		{" STATUS", 0},
		{" PRICE", 0},
		{" LAST MESSAGE", 3},
		{" ACTIVE", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(dl.theme.TableHeaderFg).
			SetBackgroundColor(dl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		dl.SetCell(0, col, cell)
	}

	now := dl.now()
	rows := dl.visible()
	for i, d := range rows {
		row := i + 1
		fg := dl.theme.FgColor
		dl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(d.Title))).SetExpansion(2).SetTextColor(fg))
		dl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(d.Counterparty))).SetExpansion(1).SetTextColor(fg))
		dl.SetCell(row, 2, tview.NewTableCell(" "+d.Status).SetTextColor(fg))
		dl.SetCell(row, 3, tview.NewTableCell(" "+FormatPrice(d.Price)).SetTextColor(fg).SetAlign(tview.AlignRight))
		dl.SetCell(row, 4, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(d.Preview))).SetExpansion(3).SetTextColor(fg))
		dl.SetCell(row, 5, tview.NewTableCell(" "+formatAgo(d.LastActivity, now)).SetTextColor(fg).SetAlign(tview.AlignRight))
	}

	title := fmt.Sprintf(" Deals (%d) ", len(dl.deals))
	if dl.status != "" {
		title = fmt.Sprintf(" Deals [%s] (%d) ", dl.status, len(dl.deals))
	}
	if dl.filter != "" {
		title = fmt.Sprintf(" Deals (%d/%d) filter: %s ", len(rows), len(dl.deals), tview.Escape(dl.filter))
	}
	dl.SetTitle(title)
}

// SelectedDeal returns the id of the selected deal.
func (dl *DealList) SelectedDeal() string {
	row, _ := dl.GetSelection()
	return dl.DealByIndex(row)
}

// DealByIndex returns the id of the Nth visible deal (1-based).
func (dl *DealList) DealByIndex(n int) string {
	rows := dl.visible()
	if n < 1 || n > len(rows) {
		return ""
	}
	return rows[n-1].ID
}
