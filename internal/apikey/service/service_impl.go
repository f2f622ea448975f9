package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/roamio/atlas/internal/apikey/domain"
	"github.com/roamio/atlas/internal/authorization"
	"github.com/roamio/atlas/internal/clock"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	apiKeyPrefix      = "ak_live_"
	apiKeySecretBytes = 32
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  apikeydomain.Repository
	Users userdomain.Service
	Authz authorization.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  apikeydomain.Repository
	users userdomain.Service
	authz authorization.Service
}

func NewService(p Params) apikeydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("apikey.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		users: p.Users,
		authz: p.Authz,
	}
}

// Create implements domain.Service.
func (s *Service) Create(ctx context.Context, callerID string, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	if err := s.requireManager(ctx, callerID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apikeydomain.ErrInvalidName
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = []string{apikeydomain.ScopeUsageWrite}
	}
	for _, scope := range scopes {
		if !apikeydomain.KnownScope(scope) {
			return nil, fmt.Errorf("%w: %s", apikeydomain.ErrInvalidScope, scope)
		}
	}

	id := s.genID.Generate()
	prefix := keyPrefix(id)
	plain, hash, err := generateAPIKey(prefix)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	now := s.clock.Now()
	key := &apikeydomain.APIKey{
		ID:        id,
		Name:      name,
		Prefix:    prefix,
		Hash:      hash,
		Scopes:    scopes,
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, fmt.Errorf("insert key: %w", err)
	}

	s.log.Info("api key created",
		zap.String("prefix", prefix),
		zap.Strings("scopes", scopes))

	return &apikeydomain.SecretResponse{Prefix: prefix, APIKey: plain}, nil
}

// List implements domain.Service.
func (s *Service) List(ctx context.Context, callerID string) ([]apikeydomain.Response, error) {
	if err := s.requireManager(ctx, callerID); err != nil {
		return nil, err
	}

	keys, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	resp := make([]apikeydomain.Response, 0, len(keys))
	for i := range keys {
		resp = append(resp, toResponse(&keys[i]))
	}
	return resp, nil
}

// Revoke implements domain.Service.
func (s *Service) Revoke(ctx context.Context, callerID string, prefix string) error {
	if err := s.requireManager(ctx, callerID); err != nil {
		return err
	}

	key, err := s.repo.FindByPrefix(ctx, s.db, strings.TrimSpace(prefix))
	if err != nil {
		return fmt.Errorf("find key: %w", err)
	}
	if key == nil {
		return apikeydomain.ErrKeyNotFound
	}
	if key.Revoked() {
		return nil
	}

	if err := s.repo.Revoke(ctx, s.db, key.ID, s.clock.Now()); err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}

	s.log.Info("api key revoked", zap.String("prefix", key.Prefix))
	return nil
}

// Verify implements domain.Service.
func (s *Service) Verify(ctx context.Context, raw string, scope string) (*apikeydomain.APIKey, error) {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, "_")
	if idx <= 0 {
		return nil, apikeydomain.ErrKeyInvalid
	}

	key, err := s.repo.FindByPrefix(ctx, s.db, raw[:idx])
	if err != nil {
		return nil, fmt.Errorf("find key: %w", err)
	}
	if key == nil {
		return nil, apikeydomain.ErrKeyNotFound
	}
	if key.Revoked() {
		return nil, apikeydomain.ErrKeyRevoked
	}

	if subtle.ConstantTimeCompare([]byte(apikeydomain.HashAPIKey(raw)), []byte(key.Hash)) != 1 {
		return nil, apikeydomain.ErrKeyInvalid
	}
	if !key.HasScope(scope) {
		return nil, apikeydomain.ErrScopeMissing
	}

	// last_used_at is advisory; a failed touch must not fail the request.
	if err := s.repo.TouchLastUsed(ctx, s.db, key.ID, s.clock.Now()); err != nil {
		s.log.Warn("api key last_used_at not updated",
			zap.String("prefix", key.Prefix),
			zap.Error(err))
	}

	return key, nil
}

// requireManager resolves the caller and checks the api_keys write
// permission. The deny sentinel passes through untouched; the boundary maps
// it to 403.
func (s *Service) requireManager(ctx context.Context, callerID string) error {
	caller, err := s.users.RequireActive(ctx, callerID)
	if err != nil {
		return err
	}
	return s.authz.Authorize(ctx, string(caller.Role), authorization.ObjectAPIKeys, authorization.ActionWrite)
}

func toResponse(key *apikeydomain.APIKey) apikeydomain.Response {
	return apikeydomain.Response{
		ID:         key.ID,
		Name:       key.Name,
		Prefix:     key.Prefix,
		Scopes:     key.Scopes,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
		RevokedAt:  key.RevokedAt,
	}
}

func generateAPIKey(prefix string) (string, string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}
	plain := prefix + "_" + hex.EncodeToString(secret)
	return plain, apikeydomain.HashAPIKey(plain), nil
}

func keyPrefix(id snowflake.ID) string {
	return apiKeyPrefix + strings.ToUpper(strconv.FormatInt(int64(id), 36))
}
