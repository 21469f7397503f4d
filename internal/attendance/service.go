package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parishroll/parishroll/backend/internal/apperr"
	"github.com/parishroll/parishroll/backend/internal/members"
	"github.com/parishroll/parishroll/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingDatabase = errors.New("attendance: database handle is required")

// ServiceConfig describes the dependencies of the snapshot engine.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service records and reconciles per-day attendance snapshots while keeping
// member talent balances equal to the sum of their snapshot deltas.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the snapshot engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

func (s *Service) today() string {
	return s.clock().Format(DateLayout)
}

// SaveRecord is one member's entry in a save request.
type SaveRecord struct {
	MemberID uint   `json:"memberId"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
	Note     string `json:"note"`
	Talent   int    `json:"talent"`
}

// Save upserts one snapshot per record and shifts each member's balance by
// the difference between the new talent value and the previously stored one,
// so re-saving a date never double-counts.
//
// Each record commits in its own transaction. A failure aborts that record
// and is returned; records already processed stay committed.
func (s *Service) Save(ctx context.Context, recorder users.User, rawDate string, records []SaveRecord) error {
	date, err := ParseDate(rawDate)
	if err != nil {
		return apperr.Invalid(err.Error())
	}

	for _, record := range records {
		status, err := ParseStatus(record.Status)
		if err != nil {
			return apperr.Invalid(err.Error())
		}
		if err := s.saveOne(ctx, recorder, date, record, status); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) saveOne(ctx context.Context, recorder users.User, date string, record SaveRecord, status Status) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member members.Member
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("member_id = ?", record.MemberID).
			Take(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(fmt.Sprintf("member %d not found", record.MemberID))
		}
		if err != nil {
			return err
		}

		var snapshot Snapshot
		oldDelta := 0
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("member_id = ? AND attendance_date = ?", member.ID, date).
			Take(&snapshot).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			snapshot = Snapshot{MemberID: member.ID, Date: date}
		} else if err != nil {
			return err
		} else {
			oldDelta = snapshot.Talent
		}

		snapshot.UserID = recorder.ID
		snapshot.GroupID = member.GroupID
		snapshot.Status = status
		snapshot.Reason = record.Reason
		snapshot.Note = record.Note
		snapshot.Talent = record.Talent
		if err := tx.Save(&snapshot).Error; err != nil {
			s.logger.Error("snapshot upsert failed",
				zap.Uint("member_id", member.ID),
				zap.String("date", date),
				zap.Error(err))
			return err
		}

		if adjustment := record.Talent - oldDelta; adjustment != 0 {
			if err := tx.Model(&members.Member{}).
				Where("member_id = ?", member.ID).
				Update("talent", gorm.Expr("talent + ?", adjustment)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns the attendance board for a group and date. Today's view is
// built from the active roster with synthetic Absent rows for unmarked
// members; historical views are reconstructed purely from snapshots, so
// members who left the roster later still appear on days they were tracked.
func (s *Service) Load(ctx context.Context, groupID uint, rawDate string) (DayView, error) {
	date, err := ParseDate(rawDate)
	if err != nil {
		return DayView{}, apperr.Invalid(err.Error())
	}

	var snapshots []Snapshot
	if err := s.db.WithContext(ctx).
		Preload("Member").
		Where("group_id = ? AND attendance_date = ?", groupID, date).
		Find(&snapshots).Error; err != nil {
		s.logger.Error("snapshot load failed", zap.Uint("group_id", groupID), zap.String("date", date), zap.Error(err))
		return DayView{}, err
	}

	byMember := make(map[uint]*Snapshot, len(snapshots))
	for i := range snapshots {
		byMember[snapshots[i].MemberID] = &snapshots[i]
	}

	var roster []members.Member
	if date == s.today() {
		if err := s.db.WithContext(ctx).
			Where("group_id = ? AND is_active = ?", groupID, true).
			Order("member_id ASC").
			Find(&roster).Error; err != nil {
			return DayView{}, err
		}
	} else {
		roster = make([]members.Member, 0, len(snapshots))
		for i := range snapshots {
			roster = append(roster, snapshots[i].Member)
		}
	}

	view := DayView{
		SnapshotLoaded: len(snapshots) > 0,
		Records:        make([]RecordView, 0, len(roster)),
	}
	for _, member := range roster {
		view.Records = append(view.Records, newRecordView(member, byMember[member.ID]))
	}
	return view, nil
}

// SavedDates lists the distinct dates the group has snapshots for.
func (s *Service) SavedDates(ctx context.Context, groupID uint) ([]string, error) {
	var dates []string
	if err := s.db.WithContext(ctx).
		Model(&Snapshot{}).
		Distinct("attendance_date").
		Where("group_id = ?", groupID).
		Order("attendance_date ASC").
		Pluck("attendance_date", &dates).Error; err != nil {
		return nil, err
	}
	return dates, nil
}

// ParishSavedDates lists the distinct dates across every sub-group of a parish.
func (s *Service) ParishSavedDates(ctx context.Context, parishGroupID uint) ([]string, error) {
	var dates []string
	if err := s.db.WithContext(ctx).
		Model(&Snapshot{}).
		Distinct("attendance_date").
		Where("group_id IN (SELECT group_id FROM church_groups WHERE parent_id = ?)", parishGroupID).
		Order("attendance_date ASC").
		Pluck("attendance_date", &dates).Error; err != nil {
		return nil, err
	}
	return dates, nil
}

// DeleteByDate rolls back the caller's group for one date: positive talent
// deltas are subtracted from their members' balances, then every snapshot of
// the day is removed. Only the current day may be rolled back; zero and
// negative deltas are not reversed.
func (s *Service) DeleteByDate(ctx context.Context, caller users.User, rawDate string) error {
	date, err := ParseDate(rawDate)
	if err != nil {
		return apperr.Invalid(err.Error())
	}
	if date != s.today() {
		return apperr.Denied("only today's attendance can be deleted")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snapshots []Snapshot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_id = ? AND attendance_date = ?", caller.GroupID, date).
			Find(&snapshots).Error; err != nil {
			return err
		}
		if len(snapshots) == 0 {
			return nil
		}

		for _, snapshot := range snapshots {
			if snapshot.Talent <= 0 {
				continue
			}
			if err := tx.Model(&members.Member{}).
				Where("member_id = ?", snapshot.MemberID).
				Update("talent", gorm.Expr("talent - ?", snapshot.Talent)).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("group_id = ? AND attendance_date = ?", caller.GroupID, date).
			Delete(&Snapshot{}).Error; err != nil {
			s.logger.Error("snapshot delete failed", zap.Uint("group_id", caller.GroupID), zap.String("date", date), zap.Error(err))
			return err
		}
		return nil
	})
}
