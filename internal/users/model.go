package users

import "github.com/parishroll/parishroll/backend/internal/groups"

// Role enumerates the fixed permission tiers.
type Role int

const (
	RoleAdmin Role = iota
	RoleParishAdmin
	RoleGroupLeader
	RoleLeaderCandidate
	RoleClergy
)

// CanManageParish reports whether the role sees across a parish's sub-groups.
func (r Role) CanManageParish() bool {
	return r == RoleParishAdmin || r == RoleClergy
}

// CanWriteNotice reports whether the role may author announcements.
func (r Role) CanWriteNotice() bool {
	return r == RoleParishAdmin || r == RoleClergy
}

// BookingCapped reports whether the role is limited to two bookings per day.
func (r Role) BookingCapped() bool {
	return r == RoleGroupLeader || r == RoleLeaderCandidate
}

// User is an authenticated account. Accounts are never deleted, only
// disabled via Active.
type User struct {
	ID           uint         `gorm:"column:user_id;primaryKey"`
	Username     string       `gorm:"column:username;size:50;uniqueIndex;not null"`
	PasswordHash string       `gorm:"column:password_hash;size:255;not null"`
	Name         string       `gorm:"column:name;size:50;not null"`
	Role         Role         `gorm:"column:role;not null"`
	Youth        bool         `gorm:"column:is_youth;not null;default:false"`
	Active       bool         `gorm:"column:is_active;not null;default:true"`
	GroupID      uint         `gorm:"column:group_id;not null"`
	Group        groups.Group `gorm:"foreignKey:GroupID"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// ParishGroup resolves the parish the user belongs to: a group leader's
// parish is their group's parent, everyone else uses their own group.
// Requires Group.Parent to be preloaded.
func (u User) ParishGroup() groups.Group {
	if u.Role == RoleGroupLeader && u.Group.Parent != nil {
		return *u.Group.Parent
	}
	return u.Group
}
