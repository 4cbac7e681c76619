package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophpool/internal/api"
	"github.com/dmitrijs2005/gophpool/internal/client/client"
	"github.com/dmitrijs2005/gophpool/internal/client/config"
	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/cryptox"
	"github.com/dmitrijs2005/gophpool/internal/pool"
)

// PoolAPI is the part of the gRPC client the commands use.
type PoolAPI interface {
	Ping(ctx context.Context) error
	InitializePool(ctx context.Context) (*api.InitializePoolResponse, error)
	CreateEntry(ctx context.Context, title, externalReference string, contribution uint64) (*api.CreateEntryResponse, error)
	Settle(ctx context.Context, winner pool.EntryKey, winnerPayout, creatorPayout pool.Identity) (*pool.Settlement, error)
	Airdrop(ctx context.Context, amount uint64) (uint64, error)
	GetPool(ctx context.Context) (*api.GetPoolResponse, error)
	GetEntry(ctx context.Context, key pool.EntryKey) (pool.Entry, error)
	ListEntries(ctx context.Context, req *api.ListEntriesRequest) ([]pool.Entry, error)
	GetBalance(ctx context.Context, id pool.Identity) (uint64, error)
	ListSettlements(ctx context.Context, limit int) ([]*pool.Settlement, error)
	GetReceiptURL(ctx context.Context, settlementID string) (string, error)
	Close() error
}

// newClient is a test seam for client.New.
var newClient = func(endpoint string, signer client.Signer) (PoolAPI, error) {
	return client.New(endpoint, signer)
}

type App struct {
	config *config.Config
	in     *bufio.Reader

	configPath string
	endpoint   string
	keyFile    string
}

func NewApp(in io.Reader) *App {
	return &App{in: bufio.NewReader(in)}
}

func (a *App) loadConfig(overrides func(*config.Config)) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if overrides != nil {
		overrides(cfg)
	}
	a.config = cfg
	return nil
}

// identity returns the identity recorded in the key file without
// decrypting it.
func (a *App) identity() (pool.Identity, error) {
	f, err := cryptox.ReadKeyFile(a.config.KeyFile)
	if err != nil {
		return pool.Identity{}, keyFileError(err)
	}
	return f.Identity, nil
}

// openKey reads the key file, prompting for the passphrase when it is
// encrypted.
func (a *App) openKey(w io.Writer) (*cryptox.Key, error) {
	f, err := cryptox.ReadKeyFile(a.config.KeyFile)
	if err != nil {
		return nil, keyFileError(err)
	}

	var passphrase []byte
	if f.Encrypted() {
		passphrase, err = GetPassphrase(w, "Key passphrase: ")
		if err != nil {
			return nil, err
		}
		defer common.WipeByteArray(passphrase)
	}
	return f.Open(passphrase)
}

func keyFileError(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: run 'poolctl keygen' first", client.ErrNoKey)
	}
	return err
}

// withClient runs fn against a fresh connection bounded by the request
// timeout. With signed set the key is unlocked and used for login.
func (a *App) withClient(ctx context.Context, w io.Writer, signed bool, fn func(ctx context.Context, c PoolAPI) error) error {
	var signer client.Signer
	if signed {
		key, err := a.openKey(w)
		if err != nil {
			return err
		}
		defer key.Wipe()
		signer = key
	}

	c, err := newClient(a.config.ServerEndpointAddr, signer)
	if err != nil {
		return err
	}
	defer c.Close()

	if a.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.RequestTimeout)
		defer cancel()
	}
	return fn(ctx, c)
}
