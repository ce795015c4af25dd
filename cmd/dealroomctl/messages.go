package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/archive"
	"github.com/matheus3301/dealroom/internal/bus"
	"github.com/matheus3301/dealroom/internal/conversation"
	"github.com/matheus3301/dealroom/internal/outbox"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	searchCmd.Flags().String("deal", "", "only messages of this deal")
	searchCmd.Flags().Int("limit", 20, "maximum results")
	rootCmd.AddCommand(historyCmd, sendCmd, searchCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <deal-id>",
	Short: "Print a deal conversation and archive it locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			msgs, err := e.session.Client.ListMessages(ctx, args[0])
			if err != nil {
				return err
			}
			engine := archive.NewEngine(e.db, bus.New(), e.session.UserID(), e.logger)
			if err := engine.IngestFetched(ctx, msgs); err != nil {
				e.logger.Warn("archiving history failed", zap.Error(err))
			}

			if flagJSON {
				return printJSON(msgs)
			}
			for _, m := range msgs {
				name := firstNonEmpty(m.Sender.Name, m.Sender.Email, m.Sender.ID)
				if m.Sender.ID == e.session.UserID() {
					name = "You"
				}
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format(time.DateTime), name, m.Content)
			}
			return nil
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <deal-id> <message...>",
	Short: "Send a message to a deal conversation",
	Long: `Send persists a message through the REST API with a fresh correlation id.
Peers with the conversation open receive it when their client next loads
the history; use the TUI for live delivery.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := strings.TrimSpace(strings.Join(args[1:], " "))
		if body == "" {
			return conversation.ErrEmptyMessage
		}
		return run(cmd, true, func(ctx context.Context, e *env) error {
			b := bus.New()
			sender := outbox.NewSender(e.session.Client, b, clockwork.NewRealClock(), e.logger)
			entry := sender.Queue(args[0], body)
			msg, err := sender.Deliver(ctx, entry.ClientID)
			if err != nil {
				return err
			}
			if msg.ClientID == "" {
				msg.ClientID = entry.ClientID
			}
			engine := archive.NewEngine(e.db, b, e.session.UserID(), e.logger)
			if err := engine.IngestFetched(ctx, []api.Message{msg}); err != nil {
				e.logger.Warn("archiving sent message failed", zap.Error(err))
			}
			if flagJSON {
				return printJSON(msg)
			}
			fmt.Printf("Sent %s at %s\n", msg.ID, msg.CreatedAt.Local().Format(time.DateTime))
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search of archived messages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dealID, _ := cmd.Flags().GetString("deal")
		limit, _ := cmd.Flags().GetInt("limit")
		query := strings.Join(args, " ")
		return run(cmd, false, func(ctx context.Context, e *env) error {
			results, err := e.db.SearchMessages(ctx, query, dealID, limit)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(results)
			}
			if len(results) == 0 {
				fmt.Println("No matches in archived messages.")
				return nil
			}
			w := newTable()
			fmt.Fprintln(w, "DEAL\tFROM\tWHEN\tSNIPPET")
			for _, r := range results {
				m := r.Message
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.DealID, firstNonEmpty(m.SenderName, m.SenderID),
					humanize.Time(time.UnixMilli(m.Timestamp)), r.Snippet)
			}
			return w.Flush()
		})
	},
}
