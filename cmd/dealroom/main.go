package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/dealroom/internal/app"
	"github.com/matheus3301/dealroom/internal/config"
	"github.com/matheus3301/dealroom/internal/lock"
	"github.com/matheus3301/dealroom/internal/session"
	"github.com/matheus3301/dealroom/internal/tui"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	configFlag := flag.String("config", session.ConfigPath(), "config file")
	envFlag := flag.String("env", session.EnvFilePath(), "optional .env file")
	flag.Parse()

	cfg, err := config.Resolve(*configFlag, *envFlag)
	if err != nil {
		fail(err)
	}
	sessionName := session.Resolve(*sessionFlag, cfg)
	if err := session.ValidateName(sessionName); err != nil {
		fail(err)
	}

	p := app.Params{
		Config:      cfg,
		SessionName: sessionName,
		SignIn: func(ctx context.Context, m *session.Manager) (*session.Session, error) {
			return tui.RunSignIn(ctx, "", m.SignIn)
		},
	}

	var ui *tui.App
	fxApp := fx.New(app.Live(p), fx.Populate(&ui))
	if err := fxApp.Err(); err != nil {
		var held *lock.LockHeldError
		switch {
		case errors.As(err, &held):
			fail(fmt.Errorf("session %q is already open (pid %d)", sessionName, held.PID))
		case errors.Is(err, tui.ErrSignInCancelled):
			os.Exit(0)
		}
		fail(err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		fail(err)
	}

	signedOut, runErr := ui.Run()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}

	if runErr != nil {
		fail(runErr)
	}
	if signedOut {
		fmt.Printf("Signed out of session %q.\n", sessionName)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
