package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/cryptox"
	"github.com/dmitrijs2005/gophpool/internal/filex"
	"github.com/spf13/cobra"
)

var errPassphraseMismatch = errors.New("passphrases do not match")

func newKeygenCmd(a *App) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a new identity key",
		Long: `Create a new ed25519 identity and store it in the key file.

The seed is encrypted with a passphrase (argon2id + AES-GCM) unless --plain
is given. An existing key file is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			var passphrase []byte
			if !plain {
				p, err := readNewPassphrase(cmd)
				if err != nil {
					return err
				}
				passphrase = p
				defer common.WipeByteArray(passphrase)
			}

			key, err := cryptox.GenerateKey()
			if err != nil {
				return err
			}
			defer key.Wipe()

			f, err := cryptox.SealKey(key, passphrase)
			if err != nil {
				return err
			}

			path := a.config.KeyFile
			if _, err := filex.EnsureParentDir(path); err != nil {
				return err
			}
			if err := cryptox.WriteKeyFile(path, f); err != nil {
				if errors.Is(err, os.ErrExist) {
					return fmt.Errorf("key file %s already exists", path)
				}
				return err
			}

			fmt.Fprintf(w, "identity: %s\n", f.Identity)
			fmt.Fprintf(w, "key file: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "store the key unencrypted")
	return cmd
}

func readNewPassphrase(cmd *cobra.Command) ([]byte, error) {
	w := cmd.ErrOrStderr()
	first, err := GetPassphrase(w, "New passphrase: ")
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, errors.New("empty passphrase, use --plain for an unencrypted key")
	}
	second, err := GetPassphrase(w, "Repeat passphrase: ")
	if err != nil {
		common.WipeByteArray(first)
		return nil, err
	}
	defer common.WipeByteArray(second)
	if !bytes.Equal(first, second) {
		common.WipeByteArray(first)
		return nil, errPassphraseMismatch
	}
	return first, nil
}

func newWhoamiCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the identity of the key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.identity()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
