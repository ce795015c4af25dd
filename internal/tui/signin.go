package tui

import (
	"context"
	"errors"

	"github.com/matheus3301/dealroom/internal/session"
	"github.com/matheus3301/dealroom/internal/tui/ui"
	"github.com/matheus3301/dealroom/internal/tui/views"
	"github.com/rivo/tview"
)

// ErrSignInCancelled is returned when the user quits the sign-in form.
var ErrSignInCancelled = errors.New("sign in cancelled")

// SignInFunc authenticates a user.
type SignInFunc func(ctx context.Context, email, password string) (*session.Session, error)

// RunSignIn shows a standalone sign-in form and blocks until the user
// signs in or quits. Failed attempts keep the form open.
func RunSignIn(ctx context.Context, email string, signIn SignInFunc) (*session.Session, error) {
	app := tview.NewApplication()
	form := views.NewSignIn(ui.DefaultTheme(), email)

	var (
		result *session.Session
		busy   bool
	)
	form.SetOnSubmit(func(email, password string) {
		if busy {
			return
		}
		busy = true
		go func() {
			s, err := signIn(ctx, email, password)
			app.QueueUpdateDraw(func() {
				busy = false
				if err != nil {
					form.ShowError(err.Error())
					return
				}
				result = s
				app.Stop()
			})
		}()
	})
	form.SetOnCancel(app.Stop)

	stop := context.AfterFunc(ctx, app.Stop)
	defer stop()

	if err := app.SetRoot(form, true).EnableMouse(true).Run(); err != nil {
		return nil, err
	}
	if result == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrSignInCancelled
	}
	return result, nil
}
