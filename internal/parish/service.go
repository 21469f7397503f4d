package parish

import (
	"context"
	"errors"

	"github.com/parishroll/parishroll/backend/internal/apperr"
	"github.com/parishroll/parishroll/backend/internal/attendance"
	"github.com/parishroll/parishroll/backend/internal/groups"
	"github.com/parishroll/parishroll/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const unassignedLeaderName = "unassigned"

var (
	errMissingDatabase   = errors.New("parish: database handle is required")
	errMissingAttendance = errors.New("parish: attendance service is required")
)

// ServiceConfig describes the dependencies of the reporting layer.
type ServiceConfig struct {
	Database   *gorm.DB
	Attendance *attendance.Service
	Logger     *zap.Logger
}

// Service aggregates attendance across a parish's sub-groups. It stores
// nothing itself; summaries fold the snapshot engine's day views.
type Service struct {
	db         *gorm.DB
	attendance *attendance.Service
	logger     *zap.Logger
}

// NewService constructs the reporting service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Attendance == nil {
		return nil, errMissingAttendance
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, attendance: cfg.Attendance, logger: logger}, nil
}

// GroupResponse is one sub-group row in parish views.
type GroupResponse struct {
	GroupID    uint   `json:"groupId"`
	GroupName  string `json:"groupName"`
	LeaderName string `json:"leaderName"`
}

// SummaryResponse is the per-sub-group attendance digest for one date.
type SummaryResponse struct {
	GroupID          uint   `json:"groupId"`
	GroupName        string `json:"groupName"`
	LeaderName       string `json:"leaderName"`
	Submitted        bool   `json:"submitted"`
	PresentCount     int    `json:"presentCount"`
	AbsentCount      int    `json:"absentCount"`
	TotalTalentToday int    `json:"totalTalentToday"`
}

func requireParishAccess(caller users.User) error {
	if !caller.Role.CanManageParish() {
		return apperr.Denied("parish access requires a parish-admin or clergy role")
	}
	return nil
}

// SubGroups lists the caller's parish sub-groups with their leaders.
func (s *Service) SubGroups(ctx context.Context, caller users.User) ([]GroupResponse, error) {
	if err := requireParishAccess(caller); err != nil {
		return nil, err
	}

	subGroups, leaderByGroup, err := s.subGroupsWithLeaders(ctx, caller.GroupID)
	if err != nil {
		return nil, err
	}

	responses := make([]GroupResponse, 0, len(subGroups))
	for _, group := range subGroups {
		responses = append(responses, GroupResponse{
			GroupID:    group.ID,
			GroupName:  group.Name,
			LeaderName: leaderName(leaderByGroup, group.ID),
		})
	}
	return responses, nil
}

// GroupAttendance returns one sub-group's day view after verifying the
// sub-group belongs to the caller's parish.
func (s *Service) GroupAttendance(ctx context.Context, caller users.User, subGroupID uint, date string) (attendance.DayView, error) {
	if err := requireParishAccess(caller); err != nil {
		return attendance.DayView{}, err
	}

	var subGroup groups.Group
	err := s.db.WithContext(ctx).Where("group_id = ?", subGroupID).Take(&subGroup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return attendance.DayView{}, apperr.NotFound("group not found")
	}
	if err != nil {
		return attendance.DayView{}, err
	}
	if subGroup.ParentID == nil || *subGroup.ParentID != caller.GroupID {
		return attendance.DayView{}, apperr.Denied("group is outside your parish")
	}

	return s.attendance.Load(ctx, subGroupID, date)
}

// Dates lists every date any sub-group of the parish has snapshots for.
func (s *Service) Dates(ctx context.Context, caller users.User) ([]string, error) {
	if err := requireParishAccess(caller); err != nil {
		return nil, err
	}
	return s.attendance.ParishSavedDates(ctx, caller.GroupID)
}

// Summary folds each sub-group's day view into submission state, counts,
// and the talent total awarded that day.
func (s *Service) Summary(ctx context.Context, caller users.User, date string) ([]SummaryResponse, error) {
	if err := requireParishAccess(caller); err != nil {
		return nil, err
	}

	subGroups, leaderByGroup, err := s.subGroupsWithLeaders(ctx, caller.GroupID)
	if err != nil {
		return nil, err
	}

	summaries := make([]SummaryResponse, 0, len(subGroups))
	for _, group := range subGroups {
		view, err := s.attendance.Load(ctx, group.ID, date)
		if err != nil {
			return nil, err
		}

		summary := SummaryResponse{
			GroupID:    group.ID,
			GroupName:  group.Name,
			LeaderName: leaderName(leaderByGroup, group.ID),
		}
		if view.SnapshotLoaded {
			summary.Submitted = true
			for _, record := range view.Records {
				if record.Attendance == attendance.StatusPresent {
					summary.PresentCount++
				} else {
					summary.AbsentCount++
				}
				summary.TotalTalentToday += record.Talent
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *Service) subGroupsWithLeaders(ctx context.Context, parishGroupID uint) ([]groups.Group, map[uint]users.User, error) {
	var subGroups []groups.Group
	if err := s.db.WithContext(ctx).
		Where("parent_id = ?", parishGroupID).
		Order("group_id ASC").
		Find(&subGroups).Error; err != nil {
		s.logger.Error("sub-group list failed", zap.Uint("parish_id", parishGroupID), zap.Error(err))
		return nil, nil, err
	}

	groupIDs := make([]uint, 0, len(subGroups))
	for _, group := range subGroups {
		groupIDs = append(groupIDs, group.ID)
	}

	leaderByGroup := make(map[uint]users.User)
	if len(groupIDs) > 0 {
		var leaders []users.User
		if err := s.db.WithContext(ctx).
			Where("group_id IN ? AND role = ?", groupIDs, users.RoleGroupLeader).
			Find(&leaders).Error; err != nil {
			return nil, nil, err
		}
		for _, leader := range leaders {
			leaderByGroup[leader.GroupID] = leader
		}
	}
	return subGroups, leaderByGroup, nil
}

func leaderName(leaderByGroup map[uint]users.User, groupID uint) string {
	if leader, ok := leaderByGroup[groupID]; ok {
		return leader.Name
	}
	return unassignedLeaderName
}
