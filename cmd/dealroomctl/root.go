package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/dealroom/internal/app"
	"github.com/matheus3301/dealroom/internal/config"
	"github.com/matheus3301/dealroom/internal/session"
	"github.com/matheus3301/dealroom/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	version = "dev"

	flagSession string
	flagConfig  string
	flagEnv     string
	flagJSON    bool
	flagTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "dealroomctl",
	Short: "Command line client for the deal room",
	Long: `dealroomctl signs in to the deal room API and manages deals, prices and
messages from scripts. It shares sessions and the local archive with the
dealroom TUI.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagSession, "session", "s", "", "session name (overrides config default)")
	pf.StringVarP(&flagConfig, "config", "c", session.ConfigPath(), "config file")
	pf.StringVar(&flagEnv, "env", session.EnvFilePath(), "optional .env file")
	pf.BoolVar(&flagJSON, "json", false, "output in JSON format")
	pf.DurationVar(&flagTimeout, "timeout", 30*time.Second, "overall command timeout")
}

// env is what a command runs with.
type env struct {
	cfg     *config.Config
	name    string
	db      *store.DB
	manager *session.Manager
	logger  *zap.Logger
	// session is set for commands that need a sign-in.
	session *session.Session
}

// run builds the shared graph, restores the session when signedIn is set
// and calls fn.
func run(cmd *cobra.Command, signedIn bool, fn func(ctx context.Context, e *env) error) error {
	cfg, err := config.Resolve(flagConfig, flagEnv)
	if err != nil {
		return err
	}
	name := session.Resolve(flagSession, cfg)
	if err := session.ValidateName(name); err != nil {
		return err
	}

	e := &env{cfg: cfg, name: name}
	fxApp := fx.New(
		app.Base(app.Params{Config: cfg, SessionName: name, Console: true}),
		fx.Populate(&e.db, &e.manager, &e.logger),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()
	if err := fxApp.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = fxApp.Stop(stopCtx)
	}()

	if signedIn {
		s, err := e.manager.Restore(ctx)
		if err != nil {
			return fmt.Errorf("%w (run dealroomctl login)", err)
		}
		e.session = s
	}
	return fn(ctx, e)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}
