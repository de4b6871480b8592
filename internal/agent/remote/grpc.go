package remote

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/fieldsync/fieldsync/internal/agent/models"
	"github.com/fieldsync/fieldsync/internal/netx"
	"github.com/fieldsync/fieldsync/internal/rpc"
	"github.com/fieldsync/fieldsync/internal/syncerr"
)

const rpcTimeout = 12 * time.Second

type GRPCClient struct {
	endpointURL  string
	conn         *grpc.ClientConn
	client       rpc.SyncServiceClient
	accessToken  string
	refreshToken string
}

func NewGRPCClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	conn, err := grpc.NewClient(endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor))
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = rpc.NewSyncServiceClient(conn)
	return c, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(rpc.AccessTokenHeader, token)
	return metadata.NewOutgoingContext(ctx, md)
}

// accessTokenInterceptor attaches the bearer token to every call and, when
// the server reports it expired, refreshes the token pair once and replays
// the call.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	ctx = withAccessToken(ctx, s.accessToken)

	err := invoker(ctx, method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() != codes.Unauthenticated {
		return err
	}
	if st.Message() != syncerr.ErrTokenExpired.Error() {
		return err
	}
	if s.refreshToken == "" {
		return err
	}

	resp, err := s.client.RefreshToken(ctx, &rpc.RefreshTokenRequest{RefreshToken: s.refreshToken})
	if err != nil {
		return err
	}
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken

	ctx = withAccessToken(ctx, s.accessToken)
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (s *GRPCClient) Login(ctx context.Context, deviceID, workspaceID, secret string) error {
	resp, err := s.client.Login(ctx, &rpc.LoginRequest{DeviceID: deviceID, WorkspaceID: workspaceID, Secret: secret})
	if err != nil {
		return mapError(err)
	}
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	return nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := s.client.Ping(ctx, &rpc.PingRequest{})
	if err != nil {
		return mapError(err)
	}
	if resp.Status != "OK" {
		return syncerr.ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) UpsertJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := s.client.UpsertJob(ctx, &rpc.UpsertJobRequest{Job: job.Row()})
	if err != nil {
		return nil, mapError(err)
	}
	return models.JobFromRow(resp.Job), nil
}

func (s *GRPCClient) UpsertEntity(ctx context.Context, row rpc.EntityRow) error {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	if _, err := s.client.UpsertEntity(ctx, &rpc.UpsertEntityRequest{Row: row}); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *GRPCClient) DeleteEntity(ctx context.Context, entity, id, workspaceID string) error {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	req := &rpc.DeleteEntityRequest{Entity: entity, ID: id, WorkspaceID: workspaceID}
	if _, err := s.client.DeleteEntity(ctx, req); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *GRPCClient) PullJobs(ctx context.Context, workspaceID string) ([]*models.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := s.client.PullJobs(ctx, &rpc.PullJobsRequest{WorkspaceID: workspaceID})
	if err != nil {
		return nil, mapError(err)
	}
	jobs := make([]*models.Job, 0, len(resp.Jobs))
	for _, row := range resp.Jobs {
		jobs = append(jobs, models.JobFromRow(row))
	}
	return jobs, nil
}

func (s *GRPCClient) UploadPhoto(ctx context.Context, jobID, photoID string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := s.client.PresignPut(ctx, &rpc.PresignPutRequest{JobID: jobID, PhotoID: photoID})
	if err != nil {
		return "", mapError(err)
	}
	if err := netx.UploadToPresignedURL(ctx, resp.UploadURL, data); err != nil {
		return "", fmt.Errorf("blob upload: %w", err)
	}
	return resp.PublicURL, nil
}

func (s *GRPCClient) PhotoDownloadURL(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := s.client.PresignGet(ctx, &rpc.PresignGetRequest{Key: key})
	if err != nil {
		return "", mapError(err)
	}
	return resp.URL, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", syncerr.ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", syncerr.ErrUnavailable, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", syncerr.ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", syncerr.ErrValidation, st.Message())
	case codes.Aborted, codes.FailedPrecondition, codes.AlreadyExists:
		return fmt.Errorf("%w: %s", syncerr.ErrVersionConflict, st.Message())
	case codes.ResourceExhausted:
		// server-side throttling, not a local storage problem
		return fmt.Errorf("%w: %s", syncerr.ErrRateLimited, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
