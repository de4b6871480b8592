package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "fieldsync.v1.SyncService"

// AccessTokenHeader is the gRPC metadata key carrying the bearer token.
const AccessTokenHeader = "access_token"

// SyncServiceClient is the client API for the workspace sync service.
type SyncServiceClient interface {
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*RefreshTokenResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
	UpsertJob(ctx context.Context, in *UpsertJobRequest, opts ...grpc.CallOption) (*UpsertJobResponse, error)
	UpsertEntity(ctx context.Context, in *UpsertEntityRequest, opts ...grpc.CallOption) (*UpsertEntityResponse, error)
	DeleteEntity(ctx context.Context, in *DeleteEntityRequest, opts ...grpc.CallOption) (*DeleteEntityResponse, error)
	PullJobs(ctx context.Context, in *PullJobsRequest, opts ...grpc.CallOption) (*PullJobsResponse, error)
	PresignPut(ctx context.Context, in *PresignPutRequest, opts ...grpc.CallOption) (*PresignPutResponse, error)
	PresignGet(ctx context.Context, in *PresignGetRequest, opts ...grpc.CallOption) (*PresignGetResponse, error)
}

type syncServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncServiceClient(cc grpc.ClientConnInterface) SyncServiceClient {
	return &syncServiceClient{cc}
}

func (c *syncServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec{}.Name())}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *syncServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	out := new(LoginResponse)
	if err := c.invoke(ctx, "Login", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*RefreshTokenResponse, error) {
	out := new(RefreshTokenResponse)
	if err := c.invoke(ctx, "RefreshToken", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.invoke(ctx, "Ping", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) UpsertJob(ctx context.Context, in *UpsertJobRequest, opts ...grpc.CallOption) (*UpsertJobResponse, error) {
	out := new(UpsertJobResponse)
	if err := c.invoke(ctx, "UpsertJob", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) UpsertEntity(ctx context.Context, in *UpsertEntityRequest, opts ...grpc.CallOption) (*UpsertEntityResponse, error) {
	out := new(UpsertEntityResponse)
	if err := c.invoke(ctx, "UpsertEntity", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) DeleteEntity(ctx context.Context, in *DeleteEntityRequest, opts ...grpc.CallOption) (*DeleteEntityResponse, error) {
	out := new(DeleteEntityResponse)
	if err := c.invoke(ctx, "DeleteEntity", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) PullJobs(ctx context.Context, in *PullJobsRequest, opts ...grpc.CallOption) (*PullJobsResponse, error) {
	out := new(PullJobsResponse)
	if err := c.invoke(ctx, "PullJobs", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) PresignPut(ctx context.Context, in *PresignPutRequest, opts ...grpc.CallOption) (*PresignPutResponse, error) {
	out := new(PresignPutResponse)
	if err := c.invoke(ctx, "PresignPut", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) PresignGet(ctx context.Context, in *PresignGetRequest, opts ...grpc.CallOption) (*PresignGetResponse, error) {
	out := new(PresignGetResponse)
	if err := c.invoke(ctx, "PresignGet", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// SyncServiceServer is the server API for the workspace sync service.
type SyncServiceServer interface {
	Login(ctx context.Context, in *LoginRequest) (*LoginResponse, error)
	RefreshToken(ctx context.Context, in *RefreshTokenRequest) (*RefreshTokenResponse, error)
	Ping(ctx context.Context, in *PingRequest) (*PingResponse, error)
	UpsertJob(ctx context.Context, in *UpsertJobRequest) (*UpsertJobResponse, error)
	UpsertEntity(ctx context.Context, in *UpsertEntityRequest) (*UpsertEntityResponse, error)
	DeleteEntity(ctx context.Context, in *DeleteEntityRequest) (*DeleteEntityResponse, error)
	PullJobs(ctx context.Context, in *PullJobsRequest) (*PullJobsResponse, error)
	PresignPut(ctx context.Context, in *PresignPutRequest) (*PresignPutResponse, error)
	PresignGet(ctx context.Context, in *PresignGetRequest) (*PresignGetResponse, error)
}

func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&SyncService_ServiceDesc, srv)
}

func unaryHandler[Req any](method string, call func(srv SyncServiceServer, ctx context.Context, in *Req) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SyncServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(SyncServiceServer), ctx, req.(*Req))
			})
		},
	}
}

var SyncService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Login", func(srv SyncServiceServer, ctx context.Context, in *LoginRequest) (any, error) {
			return srv.Login(ctx, in)
		}),
		unaryHandler("RefreshToken", func(srv SyncServiceServer, ctx context.Context, in *RefreshTokenRequest) (any, error) {
			return srv.RefreshToken(ctx, in)
		}),
		unaryHandler("Ping", func(srv SyncServiceServer, ctx context.Context, in *PingRequest) (any, error) {
			return srv.Ping(ctx, in)
		}),
		unaryHandler("UpsertJob", func(srv SyncServiceServer, ctx context.Context, in *UpsertJobRequest) (any, error) {
			return srv.UpsertJob(ctx, in)
		}),
		unaryHandler("UpsertEntity", func(srv SyncServiceServer, ctx context.Context, in *UpsertEntityRequest) (any, error) {
			return srv.UpsertEntity(ctx, in)
		}),
		unaryHandler("DeleteEntity", func(srv SyncServiceServer, ctx context.Context, in *DeleteEntityRequest) (any, error) {
			return srv.DeleteEntity(ctx, in)
		}),
		unaryHandler("PullJobs", func(srv SyncServiceServer, ctx context.Context, in *PullJobsRequest) (any, error) {
			return srv.PullJobs(ctx, in)
		}),
		unaryHandler("PresignPut", func(srv SyncServiceServer, ctx context.Context, in *PresignPutRequest) (any, error) {
			return srv.PresignPut(ctx, in)
		}),
		unaryHandler("PresignGet", func(srv SyncServiceServer, ctx context.Context, in *PresignGetRequest) (any, error) {
			return srv.PresignGet(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{},
}
