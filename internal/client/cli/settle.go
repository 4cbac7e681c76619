package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophpool/internal/netx"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/spf13/cobra"
)

var errAborted = errors.New("aborted")

func newSettleCmd(a *App) *cobra.Command {
	var (
		payout  string
		creator string
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "settle OWNER TITLE",
		Short: "Pay out the pool to the entry OWNER/TITLE",
		Long: `Settle the running epoch: 90% of the pool goes to the winning entry's
owner and the rest to the pool creator.

The payout identities default to the entry owner and the recorded creator.
Only the configured settle authority may run this.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := pool.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			winner := pool.EntryKey{Title: args[1], Owner: owner}

			winnerPayout := owner
			if payout != "" {
				if winnerPayout, err = pool.ParseIdentity(payout); err != nil {
					return err
				}
			}
			var creatorPayout pool.Identity
			if creator != "" {
				if creatorPayout, err = pool.ParseIdentity(creator); err != nil {
					return err
				}
			}

			return a.withClient(cmd.Context(), cmd.ErrOrStderr(), true, func(ctx context.Context, c PoolAPI) error {
				w := cmd.OutOrStdout()

				view, err := c.GetPool(ctx)
				if err != nil {
					return err
				}
				if creatorPayout.IsZero() {
					creatorPayout = view.Ledger.Creator
				}

				if !yes {
					winnerShare, creatorShare := pool.Split(view.Ledger.TotalPool)
					fmt.Fprintf(w, "winner  %s/%s\n", owner.Short(), winner.Title)
					fmt.Fprintf(w, "  %s -> %s\n", FormatAmount(winnerShare), winnerPayout)
					fmt.Fprintf(w, "  %s -> %s\n", FormatAmount(creatorShare), creatorPayout)
					ok, err := confirm(a.in, "Settle the pool?", w)
					if err != nil {
						return err
					}
					if !ok {
						return errAborted
					}
				}

				s, err := c.Settle(ctx, winner, winnerPayout, creatorPayout)
				if err != nil {
					return err
				}
				printSettlement(w, s)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&payout, "payout", "", "winner payout identity (default: entry owner)")
	cmd.Flags().StringVar(&creator, "creator", "", "creator payout identity (default: pool creator)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newSettlementsCmd(a *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "settlements",
		Short: "List past settlements, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), cmd.ErrOrStderr(), false, func(ctx context.Context, c PoolAPI) error {
				list, err := c.ListSettlements(ctx, limit)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(w, "no settlements")
					return nil
				}
				for _, s := range list {
					fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
						s.ID, formatUnix(s.SettledAt), FormatTag(s.WinnerTag), s.WinnerTitle, FormatAmount(s.Total))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of settlements")
	return cmd
}

// fetchURL is a test seam for netx.FetchPresignedURL.
var fetchURL = netx.FetchPresignedURL

func newReceiptCmd(a *App) *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "receipt SETTLEMENT_ID",
		Short: "Print a download link for an archived settlement receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), cmd.ErrOrStderr(), false, func(ctx context.Context, c PoolAPI) error {
				url, err := c.GetReceiptURL(ctx, args[0])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if !show {
					fmt.Fprintln(w, url)
					return nil
				}
				body, err := fetchURL(ctx, url)
				if err != nil {
					return fmt.Errorf("fetch receipt: %w", err)
				}
				_, err = w.Write(body)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "download the receipt and print it")
	return cmd
}

func printSettlement(w io.Writer, s *pool.Settlement) {
	fmt.Fprintf(w, "settlement: %s\n", s.ID)
	fmt.Fprintf(w, "winner tag: %s (%s)\n", FormatTag(s.WinnerTag), s.WinnerTitle)
	fmt.Fprintf(w, "entries:    %d\n", s.Entries)
	fmt.Fprintf(w, "winner:     %s -> %s\n", FormatAmount(s.WinnerShare), s.WinnerPayout)
	fmt.Fprintf(w, "creator:    %s -> %s\n", FormatAmount(s.CreatorShare), s.CreatorPayout)
	fmt.Fprintf(w, "settled at: %s\n", formatUnix(s.SettledAt))
}
