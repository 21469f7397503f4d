package members

import (
	"github.com/parishroll/parishroll/backend/internal/groups"
	"github.com/parishroll/parishroll/backend/internal/users"
)

// Member is one person on a sub-group's attendance roster. Talent is the
// cumulative merit balance; the attendance engine keeps it equal to the sum
// of the member's snapshot deltas. Removal only clears Active so historical
// snapshots keep a valid owner.
type Member struct {
	ID      uint         `gorm:"column:member_id;primaryKey"`
	Name    string       `gorm:"column:name;size:50;not null"`
	Contact string       `gorm:"column:contact;size:100"`
	Active  bool         `gorm:"column:is_active;not null;default:true"`
	Talent  int          `gorm:"column:talent;not null;default:0"`
	GroupID uint         `gorm:"column:group_id;not null"`
	Group   groups.Group `gorm:"foreignKey:GroupID"`
	UserID  uint         `gorm:"column:user_id;not null"`
	User    users.User   `gorm:"foreignKey:UserID"`
}

// TableName provides the explicit table binding for GORM.
func (Member) TableName() string {
	return "members"
}

// Response is the roster entry shape served to clients.
type Response struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Contact   string `json:"contact"`
	Active    bool   `json:"active"`
	GroupID   uint   `json:"groupId"`
	GroupName string `json:"groupName"`
	Talent    int    `json:"talent"`
}

// NewResponse converts an entity (with Group preloaded) to its wire form.
func NewResponse(member Member) Response {
	return Response{
		ID:        member.ID,
		Name:      member.Name,
		Contact:   member.Contact,
		Active:    member.Active,
		GroupID:   member.GroupID,
		GroupName: member.Group.Name,
		Talent:    member.Talent,
	}
}
