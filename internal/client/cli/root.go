package cli

import (
	"time"

	"github.com/dmitrijs2005/gophpool/internal/client/config"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the poolctl command tree around a.
func NewRootCmd(a *App) *cobra.Command {
	var timeout time.Duration

	root := &cobra.Command{
		Use:   "poolctl",
		Short: "Take part in the weekly escrow pool",
		Long: `poolctl talks to a gophpool server.

Reads (pool, entry, entries, balance, settlements, receipt) need no key.
Mutations log in with the ed25519 key created by 'poolctl keygen'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return a.loadConfig(func(c *config.Config) {
				if flags.Changed("endpoint") {
					c.ServerEndpointAddr = a.endpoint
				}
				if flags.Changed("key") {
					c.KeyFile = a.keyFile
				}
				if flags.Changed("timeout") {
					c.RequestTimeout = timeout
				}
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "JSON config file")
	pf.StringVarP(&a.endpoint, "endpoint", "a", "", "server address (default 127.0.0.1:50051, or POOL_ENDPOINT)")
	pf.StringVarP(&a.keyFile, "key", "k", "", "key file (default ~/.gophpool/key.json, or POOL_KEY_FILE)")
	pf.DurationVar(&timeout, "timeout", 0, "per-command request timeout (default 15s, or POOL_TIMEOUT)")

	root.AddCommand(
		newKeygenCmd(a),
		newWhoamiCmd(a),
		newPingCmd(a),
		newInitCmd(a),
		newAirdropCmd(a),
		newPoolCmd(a),
		newBalanceCmd(a),
		newEnterCmd(a),
		newEntryCmd(a),
		newEntriesCmd(a),
		newSettleCmd(a),
		newSettlementsCmd(a),
		newReceiptCmd(a),
	)
	return root
}
