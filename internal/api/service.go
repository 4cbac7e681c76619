package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "gophpool.PoolService"

// FullMethod returns the gRPC method path of a PoolService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PoolServer is implemented by the gRPC server.
type PoolServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	InitializePool(context.Context, *InitializePoolRequest) (*InitializePoolResponse, error)
	CreateEntry(context.Context, *CreateEntryRequest) (*CreateEntryResponse, error)
	Settle(context.Context, *SettleRequest) (*SettleResponse, error)
	GetPool(context.Context, *GetPoolRequest) (*GetPoolResponse, error)
	GetEntry(context.Context, *GetEntryRequest) (*GetEntryResponse, error)
	ListEntries(context.Context, *ListEntriesRequest) (*ListEntriesResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	Airdrop(context.Context, *AirdropRequest) (*AirdropResponse, error)
	ListSettlements(context.Context, *ListSettlementsRequest) (*ListSettlementsResponse, error)
	GetReceiptURL(context.Context, *GetReceiptURLRequest) (*GetReceiptURLResponse, error)
}

func unary[Req, Resp any](name string, call func(PoolServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PoolServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(PoolServer), ctx, req.(*Req))
			})
		},
	}
}

var PoolServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PoolServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", PoolServer.Ping),
		unary("Login", PoolServer.Login),
		unary("InitializePool", PoolServer.InitializePool),
		unary("CreateEntry", PoolServer.CreateEntry),
		unary("Settle", PoolServer.Settle),
		unary("GetPool", PoolServer.GetPool),
		unary("GetEntry", PoolServer.GetEntry),
		unary("ListEntries", PoolServer.ListEntries),
		unary("GetBalance", PoolServer.GetBalance),
		unary("Airdrop", PoolServer.Airdrop),
		unary("ListSettlements", PoolServer.ListSettlements),
		unary("GetReceiptURL", PoolServer.GetReceiptURL),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophpool",
}

func RegisterPoolServer(s grpc.ServiceRegistrar, srv PoolServer) {
	s.RegisterService(&PoolServiceDesc, srv)
}

// PoolClient is the client stub of PoolService.
type PoolClient struct {
	cc grpc.ClientConnInterface
}

func NewPoolClient(cc grpc.ClientConnInterface) *PoolClient {
	return &PoolClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PoolClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, "Ping", in, opts)
}

func (c *PoolClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, "Login", in, opts)
}

func (c *PoolClient) InitializePool(ctx context.Context, in *InitializePoolRequest, opts ...grpc.CallOption) (*InitializePoolResponse, error) {
	return invoke[InitializePoolResponse](ctx, c.cc, "InitializePool", in, opts)
}

func (c *PoolClient) CreateEntry(ctx context.Context, in *CreateEntryRequest, opts ...grpc.CallOption) (*CreateEntryResponse, error) {
	return invoke[CreateEntryResponse](ctx, c.cc, "CreateEntry", in, opts)
}

func (c *PoolClient) Settle(ctx context.Context, in *SettleRequest, opts ...grpc.CallOption) (*SettleResponse, error) {
	return invoke[SettleResponse](ctx, c.cc, "Settle", in, opts)
}

func (c *PoolClient) GetPool(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*GetPoolResponse, error) {
	return invoke[GetPoolResponse](ctx, c.cc, "GetPool", in, opts)
}

func (c *PoolClient) GetEntry(ctx context.Context, in *GetEntryRequest, opts ...grpc.CallOption) (*GetEntryResponse, error) {
	return invoke[GetEntryResponse](ctx, c.cc, "GetEntry", in, opts)
}

func (c *PoolClient) ListEntries(ctx context.Context, in *ListEntriesRequest, opts ...grpc.CallOption) (*ListEntriesResponse, error) {
	return invoke[ListEntriesResponse](ctx, c.cc, "ListEntries", in, opts)
}

func (c *PoolClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	return invoke[GetBalanceResponse](ctx, c.cc, "GetBalance", in, opts)
}

func (c *PoolClient) Airdrop(ctx context.Context, in *AirdropRequest, opts ...grpc.CallOption) (*AirdropResponse, error) {
	return invoke[AirdropResponse](ctx, c.cc, "Airdrop", in, opts)
}

func (c *PoolClient) ListSettlements(ctx context.Context, in *ListSettlementsRequest, opts ...grpc.CallOption) (*ListSettlementsResponse, error) {
	return invoke[ListSettlementsResponse](ctx, c.cc, "ListSettlements", in, opts)
}

func (c *PoolClient) GetReceiptURL(ctx context.Context, in *GetReceiptURLRequest, opts ...grpc.CallOption) (*GetReceiptURLResponse, error) {
	return invoke[GetReceiptURLResponse](ctx, c.cc, "GetReceiptURL", in, opts)
}
