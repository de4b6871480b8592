package grpc

import (
	"context"
	"errors"

	"github.com/fieldsync/fieldsync/internal/rpc"
	"github.com/fieldsync/fieldsync/internal/server/auth"
	"github.com/fieldsync/fieldsync/internal/syncerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const (
	deviceIDKey    ctxKey = "deviceID"
	workspaceIDKey ctxKey = "workspaceID"
)

// openMethods are callable without a token.
var openMethods = map[string]bool{
	"/" + rpc.ServiceName + "/Login":        true,
	"/" + rpc.ServiceName + "/RefreshToken": true,
	"/" + rpc.ServiceName + "/Ping":         true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if !openMethods[info.FullMethod] {

		var accessToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(rpc.AccessTokenHeader)
			if len(values) > 0 {
				accessToken = values[0]
			}
		}
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		claims, err := auth.ParseToken(accessToken, s.jwtSecret)
		if err != nil {
			if errors.Is(err, syncerr.ErrTokenExpired) {
				// exact message; clients match on it to trigger a refresh
				return nil, status.Error(codes.Unauthenticated, syncerr.ErrTokenExpired.Error())
			}
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		ctx = context.WithValue(ctx, deviceIDKey, claims.DeviceID)
		ctx = context.WithValue(ctx, workspaceIDKey, claims.WorkspaceID)
	}

	return handler(ctx, req)
}

func deviceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deviceIDKey).(string)
	return id
}

func workspaceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(workspaceIDKey).(string)
	return id
}
