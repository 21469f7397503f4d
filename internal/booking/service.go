package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parishroll/parishroll/backend/internal/apperr"
	"github.com/parishroll/parishroll/backend/internal/attendance"
	"github.com/parishroll/parishroll/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dailyBookingCap = 2

var errMissingDatabase = errors.New("booking: database handle is required")

// ServiceConfig describes the dependencies of the reservation module.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages room reservations on the fixed hourly slot grid.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the reservation service.
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

// Places lists the active reservable rooms.
func (s *Service) Places(ctx context.Context) ([]PlaceResponse, error) {
	var rows []Place
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("place_id ASC").
		Find(&rows).Error; err != nil {
		s.logger.Error("place list failed", zap.Error(err))
		return nil, err
	}
	responses := make([]PlaceResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, PlaceResponse{ID: row.ID, Name: row.Name, Description: row.Description})
	}
	return responses, nil
}

// Slots returns the full hourly board for a place and date, marking each
// slot as free, taken by the caller, or taken by someone else.
func (s *Service) Slots(ctx context.Context, caller users.User, placeID uint, rawDate string) ([]SlotResponse, error) {
	date, err := attendance.ParseDate(rawDate)
	if err != nil {
		return nil, apperr.Invalid(err.Error())
	}
	if _, err := s.findPlace(ctx, placeID); err != nil {
		return nil, err
	}

	var bookings []Booking
	if err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Group.Parent").
		Where("place_id = ? AND booking_date = ?", placeID, date).
		Find(&bookings).Error; err != nil {
		return nil, err
	}

	bySlot := make(map[string]Booking, len(bookings))
	for _, row := range bookings {
		bySlot[row.Time] = row
	}

	board := make([]SlotResponse, 0, len(Slots))
	for _, slot := range Slots {
		row, taken := bySlot[slot]
		if !taken {
			board = append(board, SlotResponse{Time: slot, Status: SlotAvailable})
			continue
		}

		status := SlotBookedByOther
		if row.UserID == caller.ID {
			status = SlotBookedByMe
		}
		parishName := "N/A"
		if row.Group.Parent != nil {
			parishName = row.Group.Parent.Name
		}
		board = append(board, SlotResponse{
			Time:       slot,
			Status:     status,
			ReservedBy: row.User.Name,
			GroupName:  row.Group.Name,
			ParishName: parishName,
			Reason:     row.Reason,
		})
	}
	return board, nil
}

// CreateRequest carries a new reservation.
type CreateRequest struct {
	PlaceID uint   `json:"placeId" binding:"required"`
	Date    string `json:"date" binding:"required"`
	Time    string `json:"time" binding:"required"`
	Reason  string `json:"reason" binding:"required"`
}

// Create reserves a slot. Group leaders and leader candidates are capped at
// two bookings per day; a taken slot is a conflict, never an overwrite.
func (s *Service) Create(ctx context.Context, caller users.User, req CreateRequest) error {
	date, err := attendance.ParseDate(req.Date)
	if err != nil {
		return apperr.Invalid(err.Error())
	}
	if !ValidSlot(req.Time) {
		return apperr.Invalid(fmt.Sprintf("unknown time slot %q", req.Time))
	}

	if caller.Role.BookingCapped() {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&Booking{}).
			Where("user_id = ? AND booking_date = ?", caller.ID, date).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= dailyBookingCap {
			return apperr.Denied("at most two bookings per day")
		}
	}

	place, err := s.findPlace(ctx, req.PlaceID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Booking{}).
			Where("place_id = ? AND booking_date = ? AND booking_time = ?", place.ID, date, req.Time).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperr.Conflict("this slot is already booked")
		}

		row := Booking{
			UserID:  caller.ID,
			GroupID: caller.GroupID,
			PlaceID: place.ID,
			Date:    date,
			Time:    req.Time,
			Reason:  req.Reason,
		}
		if err := tx.Create(&row).Error; err != nil {
			// The unique slot index decides the winner when two requests
			// pass the existence check concurrently.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("this slot is already booked")
			}
			s.logger.Error("booking create failed", zap.Uint("place_id", place.ID), zap.String("date", date), zap.Error(err))
			return err
		}
		return nil
	})
}

// Cancel deletes the caller's own booking. Past bookings may be cancelled.
func (s *Service) Cancel(ctx context.Context, caller users.User, bookingID uint) error {
	var row Booking
	err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("booking not found")
	}
	if err != nil {
		return err
	}
	if row.UserID != caller.ID {
		return apperr.Denied("only your own bookings can be cancelled")
	}
	return s.db.WithContext(ctx).Delete(&row).Error
}

// MyBookings lists the caller's bookings from today onward, date then time
// ascending.
func (s *Service) MyBookings(ctx context.Context, caller users.User) ([]MyBookingResponse, error) {
	today := s.clock().Format(attendance.DateLayout)

	var rows []Booking
	if err := s.db.WithContext(ctx).
		Preload("Place").
		Where("user_id = ? AND booking_date >= ?", caller.ID, today).
		Order("booking_date ASC, booking_time ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	responses := make([]MyBookingResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, newMyBookingResponse(row))
	}
	return responses, nil
}

// MyBookingsOnDate lists the caller's bookings for one date.
func (s *Service) MyBookingsOnDate(ctx context.Context, caller users.User, rawDate string) ([]MyBookingResponse, error) {
	date, err := attendance.ParseDate(rawDate)
	if err != nil {
		return nil, apperr.Invalid(err.Error())
	}

	var rows []Booking
	if err := s.db.WithContext(ctx).
		Preload("Place").
		Where("user_id = ? AND booking_date = ?", caller.ID, date).
		Order("booking_time ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	responses := make([]MyBookingResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, newMyBookingResponse(row))
	}
	return responses, nil
}

func (s *Service) findPlace(ctx context.Context, placeID uint) (Place, error) {
	var place Place
	err := s.db.WithContext(ctx).Where("place_id = ?", placeID).Take(&place).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Place{}, apperr.NotFound("place not found")
	}
	if err != nil {
		return Place{}, err
	}
	return place, nil
}
