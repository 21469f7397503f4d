package notices

import (
	"time"

	"github.com/parishroll/parishroll/backend/internal/groups"
	"github.com/parishroll/parishroll/backend/internal/users"
)

// Notice is a parish-scoped announcement. Comments hang off it and are
// removed with it.
type Notice struct {
	ID            uint         `gorm:"column:notice_id;primaryKey"`
	Title         string       `gorm:"column:title;size:255;not null"`
	Content       string       `gorm:"column:content;type:text;not null"`
	Important     bool         `gorm:"column:is_important;not null;default:false"`
	CreatedAt     time.Time    `gorm:"column:created_date;autoCreateTime"`
	AuthorID      uint         `gorm:"column:user_id;not null"`
	Author        users.User   `gorm:"foreignKey:AuthorID"`
	ParishGroupID uint         `gorm:"column:group_id;not null;index"`
	ParishGroup   groups.Group `gorm:"foreignKey:ParishGroupID"`
}

// TableName provides the explicit table binding for GORM.
func (Notice) TableName() string {
	return "notices"
}

// Comment is a reply on a notice.
type Comment struct {
	ID        uint       `gorm:"column:comment_id;primaryKey"`
	Content   string     `gorm:"column:content;size:1000;not null"`
	CreatedAt time.Time  `gorm:"column:created_date;autoCreateTime"`
	AuthorID  uint       `gorm:"column:user_id;not null"`
	Author    users.User `gorm:"foreignKey:AuthorID"`
	NoticeID  uint       `gorm:"column:notice_id;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "notice_comments"
}

// NoticeResponse is the list-view shape.
type NoticeResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	AuthorName  string    `json:"authorName"`
	CreatedDate time.Time `json:"createdDate"`
	Important   bool      `json:"important"`
}

func newNoticeResponse(notice Notice) NoticeResponse {
	return NoticeResponse{
		ID:          notice.ID,
		Title:       notice.Title,
		AuthorName:  notice.Author.Name,
		CreatedDate: notice.CreatedAt,
		Important:   notice.Important,
	}
}

// CommentResponse is one comment with an is-mine marker for the caller.
type CommentResponse struct {
	ID          uint      `json:"id"`
	Content     string    `json:"content"`
	AuthorName  string    `json:"authorName"`
	CreatedDate time.Time `json:"createdDate"`
	IsAuthor    bool      `json:"author"`
}

// DetailResponse is the full notice with its comment thread.
type DetailResponse struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	AuthorName  string            `json:"authorName"`
	CreatedDate time.Time         `json:"createdDate"`
	Important   bool              `json:"important"`
	IsAuthor    bool              `json:"author"`
	Comments    []CommentResponse `json:"comments"`
}
