// Package services holds the server-side business logic between the gRPC
// transport and the repositories.
package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/fieldsync/fieldsync/internal/dbx"
	"github.com/fieldsync/fieldsync/internal/server/auth"
	"github.com/fieldsync/fieldsync/internal/server/config"
	"github.com/fieldsync/fieldsync/internal/server/models"
	"github.com/fieldsync/fieldsync/internal/server/repositories/repomanager"
	"github.com/fieldsync/fieldsync/internal/syncerr"
	"golang.org/x/crypto/blake2b"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService authenticates devices against their workspace's shared
// secret and manages the token pair lifecycle.
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// HashSecret returns the hex blake2b-256 digest stored for a workspace
// secret. Exported so provisioning tooling hashes the same way.
func HashSecret(secret string) string {
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// CreateWorkspace provisions a workspace with the given shared secret.
func (s *AuthService) CreateWorkspace(ctx context.Context, id, name, secret string) error {
	repo := s.repomanager.Workspaces(s.db)
	ws := &models.Workspace{ID: id, Name: name, SecretHash: HashSecret(secret)}
	if err := repo.Create(ctx, ws); err != nil {
		return fmt.Errorf("error creating workspace: %v", err)
	}
	return nil
}

func (s *AuthService) checkSecret(secretHash, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(secretHash), []byte(HashSecret(candidate))) == 1
}

// Login verifies the workspace secret and issues a token pair bound to
// the calling device.
func (s *AuthService) Login(ctx context.Context, deviceID, workspaceID, secret string) (*TokenPair, error) {
	if deviceID == "" || workspaceID == "" {
		return nil, syncerr.ErrValidation
	}

	repo := s.repomanager.Workspaces(s.db)
	ws, err := repo.Get(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, syncerr.ErrNotFound) {
			return nil, syncerr.ErrUnauthorized
		}
		return nil, fmt.Errorf("error loading workspace: %v", err)
	}

	if !s.checkSecret(ws.SecretHash, secret) {
		return nil, syncerr.ErrUnauthorized
	}

	return s.generateTokenPair(ctx, deviceID, workspaceID)
}

// RefreshToken rotates a refresh token: the old token is deleted and a
// fresh pair is issued in the same transaction. Expired or unknown
// refresh tokens force a new login.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, syncerr.ErrNotFound) {
			return nil, syncerr.ErrUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %v", err)
	}

	if token.Expires.Before(time.Now()) {
		return nil, syncerr.ErrUnauthorized
	}

	var tokenPair *TokenPair

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := s.repomanager.RefreshTokens(tx)
		if err := txRepo.Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %v", err)
		}

		tokenPair, err = s.generateTokenPairTx(ctx, tx, token.DeviceID, token.WorkspaceID)
		if err != nil {
			return fmt.Errorf("error generating token pair: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tokenPair, nil
}

func (s *AuthService) generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *AuthService) generateTokenPair(ctx context.Context, deviceID, workspaceID string) (*TokenPair, error) {
	return s.generateTokenPairTx(ctx, s.db, deviceID, workspaceID)
}

func (s *AuthService) generateTokenPairTx(ctx context.Context, db dbx.DBTX, deviceID, workspaceID string) (*TokenPair, error) {
	accessToken, err := auth.GenerateToken(deviceID, workspaceID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %v", err)
	}

	refreshToken, err := s.generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %v", err)
	}

	repo := s.repomanager.RefreshTokens(db)
	if err := repo.Create(ctx, refreshToken, deviceID, workspaceID, s.refreshTokenValidityDuration); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %v", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
