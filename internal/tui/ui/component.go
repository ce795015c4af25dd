package ui

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // 1-9 shortcuts use a different color
}

// Component is a page of the TUI.
type Component interface {
	Name() string
	Hints() []MenuHint
}
