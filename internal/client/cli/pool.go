package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/spf13/cobra"
)

func newPingCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), cmd.ErrOrStderr(), false, func(ctx context.Context, c PoolAPI) error {
				if err := c.Ping(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}

func newInitCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the pool ledger with yourself as creator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), cmd.ErrOrStderr(), true, func(ctx context.Context, c PoolAPI) error {
				resp, err := c.InitializePool(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "pool:    %s\n", resp.Address)
				fmt.Fprintf(w, "creator: %s\n", resp.Ledger.Creator)
				return nil
			})
		},
	}
}

func newAirdropCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop AMOUNT",
		Short: "Credit test funds to your identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := ParseAmount(args[0])
			if err != nil {
				return err
			}
			return a.withClient(cmd.Context(), cmd.ErrOrStderr(), true, func(ctx context.Context, c PoolAPI) error {
				balance, err := c.Airdrop(ctx, amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "balance: %s\n", FormatAmount(balance))
				return nil
			})
		},
	}
}

func newPoolCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pool",
		Short: "Show the pool ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), cmd.ErrOrStderr(), false, func(ctx context.Context, c PoolAPI) error {
				resp, err := c.GetPool(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				l := resp.Ledger
				fmt.Fprintf(w, "pool:            %s\n", resp.Address)
				fmt.Fprintf(w, "creator:         %s\n", l.Creator)
				fmt.Fprintf(w, "total pool:      %s\n", FormatAmount(l.TotalPool))
				fmt.Fprintf(w, "entries:         %d\n", l.TotalEntries)
				fmt.Fprintf(w, "epoch:           %d\n", l.Epoch)
				fmt.Fprintf(w, "balance:         %s\n", FormatAmount(resp.Balance))
				if l.LastSettlementTime == 0 {
					fmt.Fprintln(w, "last settlement: never")
					return nil
				}
				fmt.Fprintf(w, "last winner tag: %s\n", FormatTag(l.LastWinnerTag))
				fmt.Fprintf(w, "last settlement: %s\n", formatUnix(l.LastSettlementTime))
				fmt.Fprintf(w, "next settlement: %s\n", formatUnix(resp.NextSettlementAt))
				return nil
			})
		},
	}
}

func newBalanceCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [IDENTITY]",
		Short: "Show the balance of an identity (yours by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				id  pool.Identity
				err error
			)
			if len(args) == 1 {
				id, err = pool.ParseIdentity(args[0])
			} else {
				id, err = a.identity()
			}
			if err != nil {
				return err
			}
			return a.withClient(cmd.Context(), cmd.ErrOrStderr(), false, func(ctx context.Context, c PoolAPI) error {
				balance, err := c.GetBalance(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", id, FormatAmount(balance))
				return nil
			})
		},
	}
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func printEntry(w io.Writer, e pool.Entry) {
	fmt.Fprintf(w, "%s  %-32s  %s  %s  %s\n",
		FormatTag(e.SelectionTag), e.Title, e.Owner.Short(), FormatAmount(e.Contribution), formatUnix(e.CreatedAt))
}
