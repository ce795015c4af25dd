package ui

import (
	"reflect"
	"strings"
	"testing"

	"github.com/rivo/tview"
)

func newTestPages(names ...string) (*Pages, *[][]string) {
	p := NewPages()
	for _, n := range names {
		p.AddPage(n, tview.NewBox(), true, false)
	}
	var changes [][]string
	p.SetOnChange(func(stack []string) { changes = append(changes, stack) })
	return p, &changes
}

func TestPagesPushPop(t *testing.T) {
	p, changes := newTestPages("deals", "thread", "details")
	p.Reset("deals")
	p.Push("thread")
	p.Push("details")

	if got := p.Stack(); !reflect.DeepEqual(got, []string{"deals", "thread", "details"}) {
		t.Fatalf("Stack() = %v", got)
	}
	if got := p.Pop(); got != "details" {
		t.Errorf("Pop() = %q, want details", got)
	}
	if p.Current() != "thread" {
		t.Errorf("Current() = %q, want thread", p.Current())
	}
	if len(*changes) != 4 {
		t.Errorf("onChange fired %d times, want 4", len(*changes))
	}
}

func TestPagesRootStays(t *testing.T) {
	p, _ := newTestPages("deals")
	p.Reset("deals")
	if got := p.Pop(); got != "" {
		t.Errorf("Pop() on root = %q, want empty", got)
	}
	if p.Depth() != 1 {
		t.Errorf("Depth() = %d, want 1", p.Depth())
	}
}

func TestPagesPushUnwinds(t *testing.T) {
	p, _ := newTestPages("deals", "thread", "details", "help")
	p.Reset("deals")
	p.Push("thread")
	p.Push("details")
	p.Push("details")
	if p.Depth() != 3 {
		t.Errorf("Depth() after pushing current page = %d, want 3", p.Depth())
	}

	p.Push("thread")
	if got := p.Stack(); !reflect.DeepEqual(got, []string{"deals", "thread"}) {
		t.Errorf("Stack() after pushing deeper page = %v", got)
	}
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.Activate(PromptCommand)
	p.remember("search price")
	p.remember("search price")
	p.remember("deal acme")

	if got := p.History(); !reflect.DeepEqual(got, []string{"search price", "deal acme"}) {
		t.Fatalf("History() = %v", got)
	}

	p.Activate(PromptCommand)
	p.recall(-1)
	if p.GetText() != "deal acme" {
		t.Errorf("recall(-1) = %q, want deal acme", p.GetText())
	}
	p.recall(-1)
	p.recall(-1)
	if p.GetText() != "search price" {
		t.Errorf("recall past start = %q, want search price", p.GetText())
	}
	p.recall(1)
	p.recall(1)
	if p.GetText() != "" {
		t.Errorf("recall past end = %q, want empty", p.GetText())
	}
}

func TestCrumbsRender(t *testing.T) {
	c := NewCrumbs(DefaultTheme())
	got := c.render([]string{"Deals", "Acme [draft]"})
	if want := "Acme [draft[]"; !strings.Contains(got, want) {
		t.Errorf("render() = %q, want escaped %q", got, want)
	}
	if !strings.Contains(got, " > ") {
		t.Errorf("render() = %q, want separator", got)
	}
}
