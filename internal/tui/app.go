package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/dealroom/internal/bus"
	"github.com/matheus3301/dealroom/internal/conversation"
	"github.com/matheus3301/dealroom/internal/outbox"
	"github.com/matheus3301/dealroom/internal/session"
	"github.com/matheus3301/dealroom/internal/status"
	"github.com/matheus3301/dealroom/internal/tui/keys"
	"github.com/matheus3301/dealroom/internal/tui/model"
	"github.com/matheus3301/dealroom/internal/tui/ui"
	"github.com/matheus3301/dealroom/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// Page names.
const (
	pageDeals   = "deals"
	pageThread  = "thread"
	pageDetails = "details"
	pageSearch  = "search"
	pageHelp    = "help"
)

// Conversation is the open deal conversation.
type Conversation interface {
	Open(ctx context.Context, dealID string) error
	Close()
	Send(ctx context.Context, content string) (conversation.Message, error)
	Keystroke()
	Snapshot() conversation.Snapshot
}

// ChannelState reports the realtime channel state.
type ChannelState interface {
	Current() status.State
	Room() string
}

// Deps holds the collaborators of the TUI.
type Deps struct {
	Session      *session.Session
	SignOut      func(ctx context.Context) error
	Deals        model.DealService
	Archive      model.Archive
	Conversation Conversation
	Channel      ChannelState
	Bus          *bus.Bus
	Clock        clockwork.Clock
	Logger       *zap.Logger
}

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	theme     *ui.Theme
	layout    *tview.Flex
	pages     *ui.Pages
	crumbs    *ui.Crumbs
	menu      *ui.Menu
	info      *ui.SessionInfo
	prompt    *ui.Prompt
	flash     *ui.FlashModel
	flashBar  *ui.FlashBar
	statusBar *views.StatusBar
	dealList  *views.DealList
	thread    *views.MessageThread
	dealInfo  *views.DealInfo
	searchV   *views.SearchView
	helpV     *views.HelpView
	pagesByID map[string]ui.Component
	registry  *keys.Registry
	vm        *model.ViewModel

	deps    Deps
	started time.Time
	ctx     context.Context
	cancel  context.CancelFunc

	// Touched only on the UI goroutine.
	currentDeal string
	signedOut   bool
}

// NewApp creates the TUI application.
func NewApp(d Deps) *App {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	vm := model.NewViewModel(d.Deals, d.Archive, d.Session.UserID(), d.Logger)

	a := &App{
		app:       tview.NewApplication(),
		theme:     theme,
		pages:     ui.NewPages(),
		crumbs:    ui.NewCrumbs(theme),
		menu:      ui.NewMenu(theme),
		info:      ui.NewSessionInfo(theme),
		prompt:    ui.NewPrompt(theme),
		flash:     ui.NewFlashModel(d.Clock),
		flashBar:  ui.NewFlashBar(theme),
		statusBar: views.NewStatusBar(theme, d.Session.Name),
		dealList:  views.NewDealList(theme),
		thread:    views.NewMessageThread(theme),
		dealInfo:  views.NewDealInfo(theme),
		searchV:   views.NewSearchView(theme, vm.DealTitle),
		helpV:     views.NewHelpView(theme),
		registry:  keys.NewRegistry(),
		vm:        vm,
		deps:      d,
		started:   d.Clock.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.pagesByID = map[string]ui.Component{
		pageDeals:   a.dealList,
		pageThread:  a.thread,
		pageDetails: a.dealInfo,
		pageSearch:  a.searchV,
		pageHelp:    a.helpV,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.quitOrBack() },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: func() { a.push(pageHelp) },
	})

	a.registry.AddGlobal("dismiss", &keys.Action{
		Key: tcell.KeyCtrlX, Description: "ctrl-x:dismiss",
		Handler: func() {
			a.flash.Dismiss()
			a.flashBar.Update(nil)
		},
	})

	a.registry.AddView(pageDeals, "search", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "s:search", Visible: true,
		Handler: func() { a.showSearch("") },
	})
	a.registry.AddView(pageDeals, "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "d:details", Visible: true,
		Handler: func() { a.showDetails(a.dealList.SelectedDeal()) },
	})
	a.registry.AddView(pageDeals, "refresh", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:refresh", Visible: true,
		Handler: func() { a.refreshDeals() },
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageDeals, "jump"+strconv.Itoa(n), &keys.Action{
			Rune: rune('0' + n), Key: tcell.KeyRune,
			Handler: func() {
				if id := a.dealList.DealByIndex(n); id != "" {
					a.openDeal(id)
				}
			},
		})
	}

	a.registry.AddView(pageThread, "compose", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(pageThread, "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "d:details", Visible: true,
		Handler: func() { a.showDetails(a.currentDeal) },
	})
}

func (a *App) setupCallbacks() {
	a.dealList.SetSelectedFunc(func(row, col int) {
		if id := a.dealList.DealByIndex(row); id != "" {
			a.openDeal(id)
		}
	})

	a.thread.SetOnKeystroke(func() {
		a.deps.Conversation.Keystroke()
	})
	a.thread.SetOnSend(func(text string) {
		go func() {
			if _, err := a.deps.Conversation.Send(a.ctx, text); err != nil {
				// Send failures are surfaced by the conversation's notifier.
				if errors.Is(err, conversation.ErrNoConversation) {
					a.flash.Warn("No conversation open")
					a.app.QueueUpdateDraw(func() { a.thread.RestoreDraft(text) })
				}
				a.deps.Logger.Debug("send returned error", zap.Error(err))
			}
		}()
	})

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			results, err := a.vm.Search(a.ctx, query)
			if err != nil {
				a.flash.Err(err)
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(results)
				if len(results) == 0 {
					a.flash.Info("No matches in archived messages")
					return
				}
				a.app.SetFocus(a.searchV.Results())
			})
		}()
	})
	a.searchV.Results().SetSelectedFunc(func(row, col int) {
		if dealID, _ := a.searchV.SelectedResult(); dealID != "" {
			a.openDeal(dealID)
		}
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.dealList.SetFilter(text)
		}
	})
	a.prompt.SetOnCancel(func() {
		a.hidePrompt()
		if a.prompt.Mode() == ui.PromptFilter {
			a.dealList.ClearFilter()
		}
	})

	a.pages.SetOnChange(func(stack []string) {
		names := make([]string, len(stack))
		for i, id := range stack {
			names[i] = a.pagesByID[id].Name()
		}
		a.crumbs.Update(names)
		if c, ok := a.pagesByID[a.pages.Current()]; ok {
			a.menu.Update(c.Hints())
		}
	})
}

func (a *App) setupLayout() {
	for id, c := range a.pagesByID {
		a.pages.AddPage(id, c.(tview.Primitive), true, false)
	}

	header := tview.NewFlex().
		AddItem(a.info, 40, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 12, 0, false)

	a.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 6, 0, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.layout, true)
	a.pages.Reset(pageDeals)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			a.app.Stop()
			return nil
		}

		focused := a.app.GetFocus()
		if focused == tview.Primitive(a.prompt) {
			return event
		}

		current := a.pages.Current()

		// Let text input widgets handle all keys normally.
		if _, ok := focused.(*tview.InputField); ok {
			if event.Key() == tcell.KeyEscape && current == pageThread {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			if event.Key() == tcell.KeyEscape && current == pageSearch {
				a.back()
				return nil
			}
			return event
		}

		switch {
		case event.Key() == tcell.KeyEscape:
			a.back()
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == ':':
			a.showPrompt(ui.PromptCommand)
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == '/' && current == pageDeals:
			a.showPrompt(ui.PromptFilter)
			return nil
		}

		if a.registry.HandleEvent(current, event) {
			return nil
		}
		return event
	})
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.layout.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.layout.ResizeItem(a.prompt, 0, 0)
	a.focusPage(a.pages.Current())
}

func (a *App) push(page string) {
	a.pages.Push(page)
	a.focusPage(page)
}

func (a *App) back() {
	if a.pages.Depth() <= 1 {
		return
	}
	if a.pages.Pop() == pageThread {
		a.leaveDeal()
	}
	a.focusPage(a.pages.Current())
}

func (a *App) quitOrBack() {
	if a.pages.Depth() > 1 {
		a.back()
		return
	}
	a.app.Stop()
}

func (a *App) focusPage(page string) {
	switch page {
	case pageDeals:
		a.app.SetFocus(a.dealList)
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageSearch:
		a.app.SetFocus(a.searchV.Input())
	case pageDetails:
		a.app.SetFocus(a.dealInfo)
	case pageHelp:
		a.app.SetFocus(a.helpV)
	}
}

// openDeal enters a deal conversation. A previously open deal is left first.
func (a *App) openDeal(id string) {
	if a.currentDeal != "" && a.currentDeal != id {
		a.leaveDeal()
	}
	a.currentDeal = id
	a.thread.SetDeal(id, a.vm.DealTitle(id))
	if err := a.deps.Conversation.Open(a.ctx, id); err != nil {
		a.flash.Err(err)
		return
	}
	a.thread.Update(a.deps.Conversation.Snapshot())
	a.pages.Reset(pageDeals)
	a.push(pageThread)
}

func (a *App) leaveDeal() {
	if a.currentDeal == "" {
		return
	}
	a.deps.Conversation.Close()
	a.currentDeal = ""
}

func (a *App) showDetails(id string) {
	if id == "" {
		return
	}
	go func() {
		detail, err := a.vm.LoadDetail(a.ctx, id)
		if err != nil {
			a.flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.dealInfo.Update(detail)
			a.push(pageDetails)
		})
	}()
}

func (a *App) showSearch(query string) {
	a.push(pageSearch)
	if query != "" {
		a.searchV.SetQuery(query)
		a.searchV.Submit()
	}
}

// selectedDeal is the deal a command applies to.
func (a *App) selectedDeal() string {
	switch a.pages.Current() {
	case pageDetails:
		if d := a.vm.Detail(); d != nil {
			return d.Deal.ID
		}
	case pageDeals:
		return a.dealList.SelectedDeal()
	}
	return a.currentDeal
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "q", "quit":
		a.app.Stop()
	case "h", "help":
		a.push(pageHelp)
	case "search":
		a.showSearch(cmd.Args)
	case "deal", "open":
		row, ok := a.vm.FindDeal(cmd.Args)
		if !ok {
			a.flash.Warn(fmt.Sprintf("No deal matching %q", cmd.Args))
			return
		}
		a.openDeal(row.ID)
	case "filter":
		if err := a.vm.SetStatusFilter(cmd.Args); err != nil {
			a.flash.Err(err)
			return
		}
		a.refreshDeals()
	case "price":
		price, err := cmd.Price()
		if err != nil {
			a.flash.Err(err)
			return
		}
		a.dealAction(func(ctx context.Context, id string) (string, error) {
			deal, err := a.vm.ProposePrice(ctx, id, price)
			if err != nil {
				return "", err
			}
			return "Proposed " + views.FormatPrice(deal.CurrentPrice), nil
		})
	case "status":
		a.dealAction(func(ctx context.Context, id string) (string, error) {
			deal, err := a.vm.UpdateStatus(ctx, id, cmd.Args)
			if err != nil {
				return "", err
			}
			return "Deal is now " + deal.Status, nil
		})
	case "logout":
		go func() {
			if err := a.deps.SignOut(a.ctx); err != nil {
				a.flash.Err(err)
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.signedOut = true
				a.app.Stop()
			})
		}()
	case "":
	default:
		a.flash.Warn(fmt.Sprintf("Unknown command %q", cmd.Name))
	}
}

// dealAction runs fn against the selected deal and redraws its details.
func (a *App) dealAction(fn func(ctx context.Context, id string) (string, error)) {
	id := a.selectedDeal()
	if id == "" {
		a.flash.Warn("No deal selected")
		return
	}
	go func() {
		msg, err := fn(a.ctx, id)
		if err != nil {
			a.flash.Err(err)
			return
		}
		a.flash.Info(msg)
		a.app.QueueUpdateDraw(func() {
			a.dealInfo.Update(a.vm.Detail())
		})
	}()
}

func (a *App) refreshDeals() {
	go func() {
		if err := a.vm.RefreshDeals(a.ctx); err != nil {
			a.deps.Logger.Warn("refresh deals failed", zap.Error(err))
			a.flash.Err(fmt.Errorf("refresh deals: %w", err))
		}
	}()
}

// Run starts the TUI application and blocks until it exits. It reports
// whether the user signed out.
func (a *App) Run() (signedOut bool, err error) {
	go func() {
		if err := a.vm.LoadCachedDeals(a.ctx); err != nil {
			a.deps.Logger.Warn("load cached deals failed", zap.Error(err))
		}
		a.refreshDeals()
	}()
	a.startEventLoop()

	err = a.app.Run()
	a.cancel()
	return a.signedOut, err
}

// startEventLoop forwards bus events, view model refreshes and flash
// messages to the UI goroutine.
func (a *App) startEventLoop() {
	rt, unsubRT := a.deps.Bus.Subscribe("rt.status_changed", 16)
	conv, unsubConv := a.deps.Bus.Subscribe("conversation.", 256)
	notes, unsubNotes := a.deps.Bus.Subscribe("notify.", 16)
	ticker := a.deps.Clock.NewTicker(time.Second)

	a.app.QueueUpdateDraw(a.renderChrome)

	go func() {
		defer unsubRT()
		defer unsubConv()
		defer unsubNotes()
		defer ticker.Stop()
		for {
			select {
			case <-rt:
				a.app.QueueUpdateDraw(a.renderChrome)
			case evt := <-conv:
				a.handleConversation(evt)
			case evt := <-notes:
				if n, ok := evt.Payload.(conversation.Notification); ok {
					a.flash.Notify(n)
				}
			case <-a.flash.Watch():
				a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.flash.GetMessage()) })
			case <-a.vm.RefreshCh():
				a.app.QueueUpdateDraw(func() {
					a.dealList.Update(a.vm.Deals(), a.vm.StatusFilter())
					a.renderChrome()
				})
			case <-ticker.Chan():
				a.app.QueueUpdateDraw(func() {
					a.flashBar.Update(a.flash.GetMessage())
					a.statusBar.SetDropped(a.deps.Bus.Dropped())
					a.statusBar.Tick()
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

func (a *App) handleConversation(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case conversation.Snapshot:
		a.app.QueueUpdateDraw(func() { a.thread.Update(p) })
	case conversation.Message:
		a.vm.NoteActivity(p.DealID, p.Content, p.CreatedAt)
	case outbox.Ack:
		a.vm.NoteActivity(string(p.Message.Deal), p.Message.Content, p.Message.CreatedAt)
	}
}

func (a *App) renderChrome() {
	state := a.deps.Channel.Current()
	room := a.deps.Channel.Room()
	a.statusBar.SetState(state, room)
	a.info.Update(&ui.SessionData{
		Session: a.deps.Session.Name,
		User:    a.deps.Session.DisplayName(),
		Role:    a.deps.Session.User.Role,
		Channel: string(state),
		Online:  state == status.Connected || state == status.Joined,
		Room:    a.vm.DealTitle(room),
		Deals:   len(a.vm.Deals()),
		Since:   a.started,
	})
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
