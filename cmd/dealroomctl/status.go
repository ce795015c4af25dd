package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/dealroom/internal/lock"
	"github.com/matheus3301/dealroom/internal/session"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Session     string `json:"session"`
	Dir         string `json:"dir"`
	APIURL      string `json:"api_url"`
	SignedIn    bool   `json:"signed_in"`
	User        string `json:"user,omitempty"`
	TUIRunning  bool   `json:"tui_running"`
	TUIPID      int    `json:"tui_pid,omitempty"`
	CachedDeals int    `json:"cached_deals"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local state of a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(ctx context.Context, e *env) error {
			r := statusReport{
				Session: e.name,
				Dir:     session.Dir(e.name),
				APIURL:  e.cfg.APIURL,
			}
			r.TUIPID, r.TUIRunning = lock.Holder(session.Dir(e.name))

			creds, err := e.db.LoadCredentials(ctx)
			if err != nil {
				return err
			}
			if creds != nil && creds.Token != "" {
				r.SignedIn = true
				r.User = fmt.Sprintf("%s <%s>", creds.UserName, creds.UserEmail)
			}
			deals, err := e.db.ListDeals(ctx, 1000, 0)
			if err != nil {
				return err
			}
			r.CachedDeals = len(deals)

			if flagJSON {
				return printJSON(r)
			}
			fmt.Printf("Session:  %s (%s)\n", r.Session, r.Dir)
			fmt.Printf("API:      %s\n", r.APIURL)
			if r.SignedIn {
				fmt.Printf("User:     %s\n", r.User)
			} else {
				fmt.Println("User:     not signed in")
			}
			if r.TUIRunning {
				fmt.Printf("TUI:      running (pid %d)\n", r.TUIPID)
			} else {
				fmt.Println("TUI:      not running")
			}
			fmt.Printf("Archive:  %s cached deals\n", humanize.Comma(int64(r.CachedDeals)))
			return nil
		})
	},
}
