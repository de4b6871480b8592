package grpc

import (
	"context"
	"errors"

	"github.com/fieldsync/fieldsync/internal/rpc"
	"github.com/fieldsync/fieldsync/internal/syncerr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// mapError converts service errors into gRPC status codes. The codes
// chosen line up with what clients classify as permanent failures.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syncerr.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, syncerr.ErrUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, syncerr.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, syncerr.ErrSealed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, syncerr.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, syncerr.ErrQuotaExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func (s *GRPCServer) Login(ctx context.Context, in *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	pair, err := s.auth.Login(ctx, in.DeviceID, in.WorkspaceID, in.Secret)
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.LoginResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, in *rpc.RefreshTokenRequest) (*rpc.RefreshTokenResponse, error) {
	pair, err := s.auth.RefreshToken(ctx, in.RefreshToken)
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.RefreshTokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, in *rpc.PingRequest) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) UpsertJob(ctx context.Context, in *rpc.UpsertJobRequest) (*rpc.UpsertJobResponse, error) {
	row, err := s.sync.UpsertJob(ctx, workspaceIDFromContext(ctx), in.Job)
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.UpsertJobResponse{Job: row}, nil
}

func (s *GRPCServer) UpsertEntity(ctx context.Context, in *rpc.UpsertEntityRequest) (*rpc.UpsertEntityResponse, error) {
	if err := s.sync.UpsertEntity(ctx, workspaceIDFromContext(ctx), in.Row); err != nil {
		return nil, mapError(err)
	}
	return &rpc.UpsertEntityResponse{}, nil
}

func (s *GRPCServer) DeleteEntity(ctx context.Context, in *rpc.DeleteEntityRequest) (*rpc.DeleteEntityResponse, error) {
	if err := s.sync.DeleteEntity(ctx, workspaceIDFromContext(ctx), in.Entity, in.ID); err != nil {
		return nil, mapError(err)
	}
	return &rpc.DeleteEntityResponse{}, nil
}

func (s *GRPCServer) PullJobs(ctx context.Context, in *rpc.PullJobsRequest) (*rpc.PullJobsResponse, error) {
	jobs, err := s.sync.PullJobs(ctx, workspaceIDFromContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.PullJobsResponse{Jobs: jobs}, nil
}

func (s *GRPCServer) PresignPut(ctx context.Context, in *rpc.PresignPutRequest) (*rpc.PresignPutResponse, error) {
	key, uploadURL, publicURL, err := s.blob.PresignPut(ctx, workspaceIDFromContext(ctx), in.JobID, in.PhotoID)
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.PresignPutResponse{UploadURL: uploadURL, PublicURL: publicURL, Key: key}, nil
}

func (s *GRPCServer) PresignGet(ctx context.Context, in *rpc.PresignGetRequest) (*rpc.PresignGetResponse, error) {
	url, err := s.blob.PresignGet(ctx, in.Key)
	if err != nil {
		return nil, mapError(err)
	}
	return &rpc.PresignGetResponse{URL: url}, nil
}
