package users

import (
	"context"
	"errors"

	"github.com/parishroll/parishroll/backend/internal/apperr"
	"github.com/parishroll/parishroll/backend/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("users: database handle is required")

// ServiceConfig describes the dependencies for account lookup and login.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service authenticates accounts and resolves user records for the router.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// Authenticate verifies the credentials and returns the enabled account.
// Unknown login names, wrong passwords, and disabled accounts all surface
// as Unauthorized so callers cannot probe which part failed.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, err := s.findByUsername(ctx, username)
	if err != nil {
		return User{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		s.logger.Info("login rejected", zap.String("username", username), zap.String("reason", "password_mismatch"))
		return User{}, apperr.Unauthorized("invalid credentials")
	}
	if !user.Active {
		s.logger.Info("login rejected", zap.String("username", username), zap.String("reason", "account_disabled"))
		return User{}, apperr.Unauthorized("account is disabled")
	}
	return user, nil
}

// GetByUsername loads the account for a validated token subject.
func (s *Service) GetByUsername(ctx context.Context, username string) (User, error) {
	user, err := s.findByUsername(ctx, username)
	if err != nil {
		if apperr.IsKind(err, apperr.KindUnauthorized) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, err
	}
	return user, nil
}

func (s *Service) findByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Preload("Group.Parent").
		Where("username = ?", username).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		s.logger.Error("user lookup failed", zap.String("username", username), zap.Error(err))
		return User{}, err
	}
	return user, nil
}

// Profile is the account summary returned by login and /auth/me.
type Profile struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	GroupID   uint   `json:"groupId"`
	GroupName string `json:"groupName"`
	Youth     bool   `json:"youth"`
	Token     string `json:"token"`
}

// NewProfile assembles the wire profile for a user and an optional token.
func NewProfile(user User, token string) Profile {
	return Profile{
		ID:        user.ID,
		Name:      user.Name,
		Role:      user.Role,
		GroupID:   user.GroupID,
		GroupName: user.Group.Name,
		Youth:     user.Youth,
		Token:     token,
	}
}
