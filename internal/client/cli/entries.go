package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/api"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/spf13/cobra"
)

func newEnterCmd(a *App) *cobra.Command {
	var ref string

	cmd := &cobra.Command{
		Use:   "enter TITLE AMOUNT",
		Short: "Contribute AMOUNT to the pool under TITLE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := args[0]
			if err := pool.ValidateEntryFields(title, ref); err != nil {
				return err
			}
			amount, err := ParseAmount(args[1])
			if err != nil {
				return err
			}
			return a.withClient(cmd.Context(), cmd.ErrOrStderr(), true, func(ctx context.Context, c PoolAPI) error {
				resp, err := c.CreateEntry(ctx, title, ref, amount)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "entry: %s\n", resp.Address)
				fmt.Fprintf(w, "tag:   %s\n", FormatTag(resp.Entry.SelectionTag))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "external reference, e.g. a content URI")
	return cmd
}

func newEntryCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "entry OWNER TITLE",
		Short: "Show one entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := pool.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			key := pool.EntryKey{Title: args[1], Owner: owner}
			return a.withClient(cmd.Context(), cmd.ErrOrStderr(), false, func(ctx context.Context, c PoolAPI) error {
				e, err := c.GetEntry(ctx, key)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "address:      %s\n", key.Address())
				fmt.Fprintf(w, "owner:        %s\n", e.Owner)
				fmt.Fprintf(w, "title:        %s\n", e.Title)
				fmt.Fprintf(w, "reference:    %s\n", e.ExternalReference)
				fmt.Fprintf(w, "tag:          %s\n", FormatTag(e.SelectionTag))
				fmt.Fprintf(w, "contribution: %s\n", FormatAmount(e.Contribution))
				fmt.Fprintf(w, "created:      %s\n", formatUnix(e.CreatedAt))
				return nil
			})
		},
	}
}

func newEntriesCmd(a *App) *cobra.Command {
	var (
		all   bool
		since string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List entries of the running epoch",
		Long: `List entries of the running epoch, i.e. those created since the last
settlement. --since lists entries created at or after an RFC 3339 time and
--all lists every entry ever made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &api.ListEntriesRequest{Epoch: true, Limit: limit}
			switch {
			case all:
				req.Epoch = false
			case since != "":
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("%w: --since %q", pool.ErrInvalidArgument, since)
				}
				req.Epoch = false
				req.Since = t.Unix()
			}
			return a.withClient(cmd.Context(), cmd.ErrOrStderr(), false, func(ctx context.Context, c PoolAPI) error {
				entries, err := c.ListEntries(ctx, req)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(w, "no entries")
					return nil
				}
				for _, e := range entries {
					printEntry(w, e)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list entries of all epochs")
	cmd.Flags().StringVar(&since, "since", "", "list entries created at or after this time")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries (server default when 0)")
	cmd.MarkFlagsMutuallyExclusive("all", "since")
	return cmd
}
