package notices

import (
	"context"
	"errors"

	"github.com/parishroll/parishroll/backend/internal/apperr"
	"github.com/parishroll/parishroll/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("notices: database handle is required")

// ServiceConfig describes the dependencies of the announcements module.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service manages announcements and their comment threads, scoped to the
// caller's parish.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the announcements service.
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

// List returns the caller's parish notices, newest first.
func (s *Service) List(ctx context.Context, caller users.User) ([]NoticeResponse, error) {
	parish := caller.ParishGroup()

	var rows []Notice
	if err := s.db.WithContext(ctx).
		Preload("Author").
		Where("group_id = ?", parish.ID).
		Order("created_date DESC").
		Find(&rows).Error; err != nil {
		s.logger.Error("notice list failed", zap.Uint("parish_id", parish.ID), zap.Error(err))
		return nil, err
	}

	responses := make([]NoticeResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, newNoticeResponse(row))
	}
	return responses, nil
}

// Detail returns one notice with its comments, oldest comment first.
// Notices from another parish are denied even when the id is known.
func (s *Service) Detail(ctx context.Context, caller users.User, noticeID uint) (DetailResponse, error) {
	notice, err := s.loadScoped(ctx, caller, noticeID)
	if err != nil {
		return DetailResponse{}, err
	}

	var comments []Comment
	if err := s.db.WithContext(ctx).
		Preload("Author").
		Where("notice_id = ?", noticeID).
		Order("created_date ASC").
		Find(&comments).Error; err != nil {
		return DetailResponse{}, err
	}

	detail := DetailResponse{
		ID:          notice.ID,
		Title:       notice.Title,
		Content:     notice.Content,
		AuthorName:  notice.Author.Name,
		CreatedDate: notice.CreatedAt,
		Important:   notice.Important,
		IsAuthor:    notice.AuthorID == caller.ID,
		Comments:    make([]CommentResponse, 0, len(comments)),
	}
	for _, comment := range comments {
		detail.Comments = append(detail.Comments, CommentResponse{
			ID:          comment.ID,
			Content:     comment.Content,
			AuthorName:  comment.Author.Name,
			CreatedDate: comment.CreatedAt,
			IsAuthor:    comment.AuthorID == caller.ID,
		})
	}
	return detail, nil
}

// CreateNoticeRequest carries a new or edited announcement.
type CreateNoticeRequest struct {
	Title     string `json:"title" binding:"required"`
	Content   string `json:"content" binding:"required"`
	Important bool   `json:"important"`
}

// Create posts a notice into the author's parish.
func (s *Service) Create(ctx context.Context, caller users.User, req CreateNoticeRequest) (NoticeResponse, error) {
	if !caller.Role.CanWriteNotice() {
		return NoticeResponse{}, apperr.Denied("only parish admins and clergy can write notices")
	}

	notice := Notice{
		Title:         req.Title,
		Content:       req.Content,
		Important:     req.Important,
		AuthorID:      caller.ID,
		ParishGroupID: caller.GroupID,
	}
	if err := s.db.WithContext(ctx).Create(&notice).Error; err != nil {
		s.logger.Error("notice create failed", zap.Uint("author_id", caller.ID), zap.Error(err))
		return NoticeResponse{}, err
	}
	notice.Author = caller
	return newNoticeResponse(notice), nil
}

// Update edits a notice. Allowed for the author or a privileged role.
func (s *Service) Update(ctx context.Context, caller users.User, noticeID uint, req CreateNoticeRequest) (NoticeResponse, error) {
	notice, err := s.loadForModify(ctx, caller, noticeID)
	if err != nil {
		return NoticeResponse{}, err
	}

	notice.Title = req.Title
	notice.Content = req.Content
	notice.Important = req.Important
	if err := s.db.WithContext(ctx).Save(&notice).Error; err != nil {
		return NoticeResponse{}, err
	}
	return newNoticeResponse(notice), nil
}

// Delete removes a notice and its comments in one transaction. There is no
// storage-level cascade, so the comments are deleted explicitly first.
func (s *Service) Delete(ctx context.Context, caller users.User, noticeID uint) error {
	notice, err := s.loadForModify(ctx, caller, noticeID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notice_id = ?", notice.ID).Delete(&Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&notice).Error
	})
}

// CreateCommentRequest carries a new comment body.
type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateComment replies to a notice in the caller's parish.
func (s *Service) CreateComment(ctx context.Context, caller users.User, noticeID uint, req CreateCommentRequest) (CommentResponse, error) {
	if _, err := s.loadScoped(ctx, caller, noticeID); err != nil {
		return CommentResponse{}, err
	}

	comment := Comment{
		Content:  req.Content,
		AuthorID: caller.ID,
		NoticeID: noticeID,
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		s.logger.Error("comment create failed", zap.Uint("notice_id", noticeID), zap.Error(err))
		return CommentResponse{}, err
	}
	return CommentResponse{
		ID:          comment.ID,
		Content:     comment.Content,
		AuthorName:  caller.Name,
		CreatedDate: comment.CreatedAt,
		IsAuthor:    true,
	}, nil
}

// DeleteComment removes a comment. Only its author may do so.
func (s *Service) DeleteComment(ctx context.Context, caller users.User, commentID uint) error {
	var comment Comment
	err := s.db.WithContext(ctx).Where("comment_id = ?", commentID).Take(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("comment not found")
	}
	if err != nil {
		return err
	}
	if comment.AuthorID != caller.ID {
		return apperr.Denied("only the comment author can delete it")
	}
	return s.db.WithContext(ctx).Delete(&comment).Error
}

// loadScoped fetches a notice and verifies it belongs to the caller's parish.
func (s *Service) loadScoped(ctx context.Context, caller users.User, noticeID uint) (Notice, error) {
	var notice Notice
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("notice_id = ?", noticeID).
		Take(&notice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Notice{}, apperr.NotFound("notice not found")
	}
	if err != nil {
		return Notice{}, err
	}
	if notice.ParishGroupID != caller.ParishGroup().ID {
		return Notice{}, apperr.Denied("notice belongs to another parish")
	}
	return notice, nil
}

// loadForModify fetches a notice and checks edit/delete authority:
// the original author, or a role allowed to write notices.
func (s *Service) loadForModify(ctx context.Context, caller users.User, noticeID uint) (Notice, error) {
	notice, err := s.loadScoped(ctx, caller, noticeID)
	if err != nil {
		return Notice{}, err
	}
	if notice.AuthorID != caller.ID && !caller.Role.CanWriteNotice() {
		return Notice{}, apperr.Denied("not allowed to modify this notice")
	}
	return notice, nil
}
