package views

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// formatTime renders a clock time for today and a date otherwise.
func formatTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now = now.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 02")
	}
	return t.Format("2006-01-02")
}

// formatAgo renders a relative time such as "3 minutes ago".
func formatAgo(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatPrice renders an amount with thousands separators and cents.
func FormatPrice(p float64) string {
	return "$" + humanize.FormatFloat("#,###.##", p)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
