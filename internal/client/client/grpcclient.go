package client

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/api"
	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Signer produces login proofs for one identity. *cryptox.Key implements it.
type Signer interface {
	Identity() pool.Identity
	SignLogin(ts int64) []byte
}

// noTokenMethods never carry an access token.
var noTokenMethods = map[string]bool{
	api.FullMethod("Ping"):  true,
	api.FullMethod("Login"): true,
}

type GRPCClient struct {
	conn   *grpc.ClientConn
	client *api.PoolClient
	signer Signer
	now    func() time.Time

	mu          sync.Mutex
	accessToken string
}

// New connects to endpointURL. signer may be nil for read-only use.
func New(endpointURL string, signer Signer, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{signer: signer, now: time.Now}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = api.NewPoolClient(conn)
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// accessTokenInterceptor signs in before the first authenticated call and
// once more when the server says the token expired.
func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if noTokenMethods[method] || c.signer == nil {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	token := c.token()
	if token == "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
		token = c.token()
	}

	err := invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || api.Reason(st) != api.ReasonTokenExpired {
		return err
	}

	if err := c.Login(ctx); err != nil {
		return err
	}
	return invoker(withAccessToken(ctx, c.token()), method, req, reply, cc, opts...)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return api.FromStatus(err)
	}
}

// Login signs a fresh login proof and stores the returned access token.
func (c *GRPCClient) Login(ctx context.Context) error {
	if c.signer == nil {
		return ErrNoKey
	}

	ts := c.now().Unix()
	resp, err := c.client.Login(ctx, &api.LoginRequest{
		Identity:  c.signer.Identity(),
		Timestamp: ts,
		Signature: c.signer.SignLogin(ts),
	})
	if err != nil {
		return mapError(err)
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.mu.Unlock()
	return nil
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *GRPCClient) requireSigner() error {
	if c.signer == nil {
		return ErrNoKey
	}
	return nil
}

func (c *GRPCClient) InitializePool(ctx context.Context) (*api.InitializePoolResponse, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	resp, err := c.client.InitializePool(ctx, &api.InitializePoolRequest{})
	return resp, mapError(err)
}

func (c *GRPCClient) CreateEntry(ctx context.Context, title, externalReference string, contribution uint64) (*api.CreateEntryResponse, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	resp, err := c.client.CreateEntry(ctx, &api.CreateEntryRequest{
		Title:             title,
		ExternalReference: externalReference,
		Contribution:      contribution,
	})
	return resp, mapError(err)
}

func (c *GRPCClient) Settle(ctx context.Context, winner pool.EntryKey, winnerPayout, creatorPayout pool.Identity) (*pool.Settlement, error) {
	if err := c.requireSigner(); err != nil {
		return nil, err
	}
	resp, err := c.client.Settle(ctx, &api.SettleRequest{
		WinnerTitle:   winner.Title,
		WinnerOwner:   winner.Owner,
		WinnerPayout:  winnerPayout,
		CreatorPayout: creatorPayout,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Settlement, nil
}

func (c *GRPCClient) Airdrop(ctx context.Context, amount uint64) (uint64, error) {
	if err := c.requireSigner(); err != nil {
		return 0, err
	}
	resp, err := c.client.Airdrop(ctx, &api.AirdropRequest{Amount: amount})
	if err != nil {
		return 0, mapError(err)
	}
	return resp.Balance, nil
}

func (c *GRPCClient) GetPool(ctx context.Context) (*api.GetPoolResponse, error) {
	resp, err := c.client.GetPool(ctx, &api.GetPoolRequest{})
	return resp, mapError(err)
}

func (c *GRPCClient) GetEntry(ctx context.Context, key pool.EntryKey) (pool.Entry, error) {
	resp, err := c.client.GetEntry(ctx, &api.GetEntryRequest{Title: key.Title, Owner: key.Owner})
	if err != nil {
		return pool.Entry{}, mapError(err)
	}
	return resp.Entry, nil
}

func (c *GRPCClient) ListEntries(ctx context.Context, req *api.ListEntriesRequest) ([]pool.Entry, error) {
	resp, err := c.client.ListEntries(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Entries, nil
}

func (c *GRPCClient) GetBalance(ctx context.Context, id pool.Identity) (uint64, error) {
	resp, err := c.client.GetBalance(ctx, &api.GetBalanceRequest{Identity: id})
	if err != nil {
		return 0, mapError(err)
	}
	return resp.Balance, nil
}

func (c *GRPCClient) ListSettlements(ctx context.Context, limit int) ([]*pool.Settlement, error) {
	resp, err := c.client.ListSettlements(ctx, &api.ListSettlementsRequest{Limit: limit})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Settlements, nil
}

func (c *GRPCClient) GetReceiptURL(ctx context.Context, settlementID string) (string, error) {
	resp, err := c.client.GetReceiptURL(ctx, &api.GetReceiptURLRequest{SettlementID: settlementID})
	if err != nil {
		return "", mapError(err)
	}
	return resp.URL, nil
}
