package members

import (
	"context"
	"errors"

	"github.com/parishroll/parishroll/backend/internal/apperr"
	"github.com/parishroll/parishroll/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("members: database handle is required")

// ServiceConfig describes the dependencies for roster management.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service manages the attendance roster of a sub-group.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the roster service.
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

// ListByGroup returns every roster entry of the group, active or not.
func (s *Service) ListByGroup(ctx context.Context, groupID uint) ([]Response, error) {
	var rows []Member
	if err := s.db.WithContext(ctx).
		Preload("Group").
		Where("group_id = ?", groupID).
		Order("member_id ASC").
		Find(&rows).Error; err != nil {
		s.logger.Error("member list failed", zap.Uint("group_id", groupID), zap.Error(err))
		return nil, err
	}
	responses := make([]Response, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, NewResponse(row))
	}
	return responses, nil
}

// CreateRequest carries the fields a leader supplies for a new member.
type CreateRequest struct {
	Name    string `json:"name" binding:"required"`
	Contact string `json:"contact"`
}

// Create adds a member to the leader's group with a zero talent balance.
func (s *Service) Create(ctx context.Context, leader users.User, req CreateRequest) (Response, error) {
	member := Member{
		Name:    req.Name,
		Contact: req.Contact,
		Active:  true,
		Talent:  0,
		GroupID: leader.GroupID,
		UserID:  leader.ID,
	}
	if err := s.db.WithContext(ctx).Create(&member).Error; err != nil {
		s.logger.Error("member create failed", zap.Uint("group_id", leader.GroupID), zap.Error(err))
		return Response{}, err
	}
	member.Group = leader.Group
	return NewResponse(member), nil
}

// UpdateRequest carries an edit. Talent is optional so routine contact
// edits cannot zero a balance by omission.
type UpdateRequest struct {
	Name    string `json:"name" binding:"required"`
	Contact string `json:"contact"`
	Talent  *int   `json:"talent"`
}

// Update edits name, contact, and optionally overrides the talent balance.
func (s *Service) Update(ctx context.Context, memberID uint, req UpdateRequest) (Response, error) {
	var member Member
	err := s.db.WithContext(ctx).Preload("Group").Where("member_id = ?", memberID).Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Response{}, apperr.NotFound("member not found")
	}
	if err != nil {
		return Response{}, err
	}

	member.Name = req.Name
	member.Contact = req.Contact
	if req.Talent != nil {
		member.Talent = *req.Talent
	}
	if err := s.db.WithContext(ctx).Save(&member).Error; err != nil {
		s.logger.Error("member update failed", zap.Uint("member_id", memberID), zap.Error(err))
		return Response{}, err
	}
	return NewResponse(member), nil
}

// Delete deactivates the member. The row persists for snapshot history.
func (s *Service) Delete(ctx context.Context, memberID uint) error {
	result := s.db.WithContext(ctx).
		Model(&Member{}).
		Where("member_id = ?", memberID).
		Update("is_active", false)
	if result.Error != nil {
		s.logger.Error("member delete failed", zap.Uint("member_id", memberID), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("member not found")
	}
	return nil
}
