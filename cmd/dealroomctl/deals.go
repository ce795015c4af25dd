package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/overview"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	dealsCmd.Flags().String("status", "", "only deals with this status")
	dealsCmd.Flags().Bool("activity", false, "fetch each conversation and order by latest message")
	dealsCmd.Flags().Int("concurrency", overview.DefaultConcurrency, "parallel history fetches with --activity")
	analyticsCmd.Flags().String("report", api.ReportDashboard, "dashboard, deals/timeline or user-engagement")
	rootCmd.AddCommand(dealsCmd, dealCmd, priceCmd, dealStatusCmd, documentsCmd, analyticsCmd)
}

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "List deals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		activity, _ := cmd.Flags().GetBool("activity")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		return run(cmd, true, func(ctx context.Context, e *env) error {
			var rows []overview.Row
			if activity {
				var err error
				rows, err = overview.Build(ctx, e.session.Client, status, concurrency)
				if err != nil {
					return err
				}
				if err := overview.Cache(ctx, e.db, rows); err != nil {
					e.logger.Warn("caching deals failed", zap.Error(err))
				}
			} else {
				deals, err := e.session.Client.ListDeals(ctx, status)
				if err != nil {
					return err
				}
				for _, d := range deals {
					rows = append(rows, overview.Row{Deal: d})
				}
			}

			if flagJSON {
				return printJSON(rows)
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRICE\tMESSAGES\tLAST ACTIVITY")
			for _, r := range rows {
				last := "-"
				if activity && r.Last != nil {
					last = humanize.Time(r.LastActivity())
				}
				msgs := "-"
				if activity {
					msgs = humanize.Comma(int64(r.Messages))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Deal.ID, r.Deal.Title, r.Deal.Status, formatPrice(r.Deal.CurrentPrice), msgs, last)
			}
			return w.Flush()
		})
	},
}

var dealCmd = &cobra.Command{
	Use:   "deal <deal-id>",
	Short: "Show a deal with its price history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			d, err := e.session.Client.GetDeal(ctx, args[0])
			if err != nil {
				return err
			}
			return printDeal(d)
		})
	},
}

var priceCmd = &cobra.Command{
	Use:   "price <deal-id> <amount>",
	Short: "Propose a new price",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := api.ParsePrice(args[1])
		if err != nil {
			return err
		}
		return run(cmd, true, func(ctx context.Context, e *env) error {
			d, err := e.session.Client.ProposePrice(ctx, args[0], price)
			if err != nil {
				return err
			}
			return printDeal(d)
		})
	},
}

var dealStatusCmd = &cobra.Command{
	Use:       "deal-status <deal-id> <status>",
	Short:     "Change a deal's status",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{api.DealPending, api.DealInProgress, api.DealCompleted, api.DealCancelled},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			d, err := e.session.Client.UpdateDealStatus(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printDeal(d)
		})
	},
}

var documentsCmd = &cobra.Command{
	Use:   "documents <deal-id>",
	Short: "List a deal's documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, e *env) error {
			docs, err := e.session.Client.ListDocuments(ctx, args[0])
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(docs)
			}
			w := newTable()
			fmt.Fprintln(w, "NAME\tTYPE\tSIZE\tUPLOADED BY\tUPLOADED")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					d.FileName, d.FileType, humanize.Bytes(uint64(max(d.FileSize, 0))),
					firstNonEmpty(d.UploadedBy.Name, d.UploadedBy.ID), humanize.Time(d.CreatedAt))
			}
			return w.Flush()
		})
	},
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Print an analytics report as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, _ := cmd.Flags().GetString("report")
		return run(cmd, true, func(ctx context.Context, e *env) error {
			data, err := e.session.Client.Analytics(ctx, report)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		})
	},
}

func printDeal(d api.Deal) error {
	if flagJSON {
		return printJSON(d)
	}
	fmt.Printf("%s (%s)\n", d.Title, d.ID)
	fmt.Printf("Status:  %s\n", d.Status)
	fmt.Printf("Price:   %s (initial %s)\n", formatPrice(d.CurrentPrice), formatPrice(d.InitialPrice))
	fmt.Printf("Buyer:   %s\n", firstNonEmpty(d.Buyer.Name, d.Buyer.ID))
	fmt.Printf("Seller:  %s\n", firstNonEmpty(d.Seller.Name, d.Seller.ID))
	if d.Description != "" {
		fmt.Printf("\n%s\n", d.Description)
	}
	if len(d.PriceHistory) > 0 {
		fmt.Println()
		w := newTable()
		fmt.Fprintln(w, "PRICE\tPROPOSED BY\tWHEN")
		for _, p := range d.PriceHistory {
			fmt.Fprintf(w, "%s\t%s\t%s\n", formatPrice(p.Price),
				firstNonEmpty(p.ProposedBy.Name, p.ProposedBy.ID), p.Timestamp.Format(time.DateTime))
		}
		return w.Flush()
	}
	return nil
}

func formatPrice(p float64) string {
	return "$" + humanize.FormatFloat("#,###.##", p)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
