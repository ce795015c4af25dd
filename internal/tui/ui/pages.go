package ui

import "github.com/rivo/tview"

// Pages keeps a navigation stack over tview.Pages. Only the top page is
// visible; onChange fires with a copy of the stack after every change.
type Pages struct {
	*tview.Pages
	stack    []string
	onChange func(stack []string)
}

func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Push shows name on top of the stack. Pushing the current page is a no-op
// and a page already deeper in the stack is unwound to rather than duplicated.
func (p *Pages) Push(name string) {
	if p.Current() == name {
		return
	}
	if i := p.indexOf(name); i >= 0 {
		p.unwind(i + 1)
		return
	}
	if top := p.Current(); top != "" {
		p.HidePage(top)
	}
	p.stack = append(p.stack, name)
	p.show(name)
	p.notify()
}

// Pop removes the top page and returns its name. The root page stays.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.Current()
	p.unwind(len(p.stack) - 1)
	return top
}

func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

func (p *Pages) Stack() []string {
	s := make([]string, len(p.stack))
	copy(s, p.stack)
	return s
}

func (p *Pages) Depth() int {
	return len(p.stack)
}

// Reset clears the stack down to a single page.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.show(name)
	p.notify()
}

func (p *Pages) unwind(depth int) {
	for len(p.stack) > depth {
		p.HidePage(p.Current())
		p.stack = p.stack[:len(p.stack)-1]
	}
	p.show(p.Current())
	p.notify()
}

func (p *Pages) indexOf(name string) int {
	for i, n := range p.stack {
		if n == name {
			return i
		}
	}
	return -1
}

func (p *Pages) show(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}
