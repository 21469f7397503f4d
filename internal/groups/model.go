package groups

import (
	"errors"

	"gorm.io/gorm"
)

// ErrGroupDepthExceeded indicates an attempt to nest a group under a
// sub-group. The tree is two tiers: parishes have no parent, sub-groups
// hang directly off a parish.
var ErrGroupDepthExceeded = errors.New("groups: parent must be a parish-level group")

// Group is one organizational unit. A nil ParentID marks a parish.
type Group struct {
	ID       uint   `gorm:"column:group_id;primaryKey"`
	Name     string `gorm:"column:group_name;size:50;not null"`
	ParentID *uint  `gorm:"column:parent_id"`
	Parent   *Group `gorm:"foreignKey:ParentID"`
}

// TableName provides the explicit table binding for GORM.
func (Group) TableName() string {
	return "church_groups"
}

// IsParish reports whether the group sits at the top of the tree.
func (g Group) IsParish() bool {
	return g.ParentID == nil
}

// BeforeSave enforces the two-tier depth invariant at the storage layer.
func (g *Group) BeforeSave(tx *gorm.DB) error {
	if g.ParentID == nil {
		return nil
	}
	var parent Group
	if err := tx.Where("group_id = ?", *g.ParentID).Take(&parent).Error; err != nil {
		return err
	}
	if parent.ParentID != nil {
		return ErrGroupDepthExceeded
	}
	return nil
}
