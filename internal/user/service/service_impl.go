package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/roamio/atlas/internal/clock"
	userdomain "github.com/roamio/atlas/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  userdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  userdomain.Repository
}

func NewService(p Params) userdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req userdomain.CreateUserRequest) (*userdomain.User, error) {
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return nil, userdomain.ErrInvalidName
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, userdomain.ErrInvalidEmail
	}

	role := req.Role
	if role == "" {
		role = userdomain.RoleMember
	}

	handle := slug.Make(name)
	existing, err := s.repo.FindByHandle(ctx, s.db, handle)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, userdomain.ErrHandleTaken
	}

	now := s.clock.Now()
	user := &userdomain.User{
		ID:          s.genID.Generate(),
		Handle:      handle,
		DisplayName: name,
		Email:       email,
		Role:        role,
		Status:      userdomain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) GetByID(ctx context.Context, userID string) (*userdomain.User, error) {
	id, err := s.parseID(userID)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrUserNotFound
	}

	return user, nil
}

func (s *Service) RequireActive(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, userdomain.ErrUserInactive
	}
	return user, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, userdomain.ErrInvalidUserID
	}
	return id, nil
}
