package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/parishroll/parishroll/backend/internal/groups"
	"github.com/parishroll/parishroll/backend/internal/members"
	"github.com/parishroll/parishroll/backend/internal/users"
)

// Status enumerates the two attendance outcomes stored on a snapshot.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// DateLayout is the calendar-date wire and storage format.
const DateLayout = "2006-01-02"

// ParseDate validates an ISO calendar date and returns its canonical form.
func ParseDate(raw string) (string, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return parsed.Format(DateLayout), nil
}

// ParseStatus validates a client-supplied status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.TrimSpace(raw)) {
	case StatusPresent:
		return StatusPresent, nil
	case StatusAbsent:
		return StatusAbsent, nil
	default:
		return "", fmt.Errorf("unknown attendance status %q", raw)
	}
}

// Snapshot is the point-in-time attendance record for one member on one
// date. Talent holds the delta awarded for that date; the member's
// cumulative balance always equals the sum of their existing snapshots'
// deltas. At most one snapshot exists per (member, date).
type Snapshot struct {
	ID       uint           `gorm:"column:snapshot_id;primaryKey"`
	MemberID uint           `gorm:"column:member_id;not null;uniqueIndex:idx_snapshots_member_date,priority:1"`
	Member   members.Member `gorm:"foreignKey:MemberID"`
	UserID   uint           `gorm:"column:user_id;not null"`
	User     users.User     `gorm:"foreignKey:UserID"`
	GroupID  uint           `gorm:"column:group_id;not null;index:idx_snapshots_group_date,priority:1"`
	Group    groups.Group   `gorm:"foreignKey:GroupID"`
	Date     string         `gorm:"column:attendance_date;size:10;not null;uniqueIndex:idx_snapshots_member_date,priority:2;index:idx_snapshots_group_date,priority:2"`
	Status   Status         `gorm:"column:status;size:20;not null"`
	Reason   string         `gorm:"column:reason;size:255"`
	Note     string         `gorm:"column:note;size:255"`
	Talent   int            `gorm:"column:talent;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Snapshot) TableName() string {
	return "attendance_snapshots"
}

// RecordView is one roster line of the day view: member identity plus the
// snapshot fields, synthetic Absent when no snapshot exists yet.
type RecordView struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	TotalTalent int    `json:"totalTalent"`
	Attendance  Status `json:"attendance"`
	Reason      string `json:"reason"`
	Note        string `json:"note"`
	Talent      int    `json:"talent"`
}

// DayView is the attendance board for one group and date.
type DayView struct {
	SnapshotLoaded bool         `json:"snapshotLoaded"`
	Records        []RecordView `json:"records"`
}

func newRecordView(member members.Member, snapshot *Snapshot) RecordView {
	view := RecordView{
		ID:          member.ID,
		Name:        member.Name,
		TotalTalent: member.Talent,
		Attendance:  StatusAbsent,
	}
	if snapshot != nil {
		view.Attendance = snapshot.Status
		view.Reason = snapshot.Reason
		view.Note = snapshot.Note
		view.Talent = snapshot.Talent
	}
	return view
}
