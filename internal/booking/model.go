package booking

import (
	"github.com/parishroll/parishroll/backend/internal/groups"
	"github.com/parishroll/parishroll/backend/internal/users"
)

// Slots is the fixed hourly reservation grid shared by every place.
var Slots = []string{
	"09:00", "10:00", "11:00", "12:00", "13:00",
	"14:00", "15:00", "16:00", "17:00",
}

// ValidSlot reports whether the label is one of the fixed hourly slots.
func ValidSlot(label string) bool {
	for _, slot := range Slots {
		if slot == label {
			return true
		}
	}
	return false
}

// Place is a reservable shared room.
type Place struct {
	ID          uint   `gorm:"column:place_id;primaryKey"`
	Name        string `gorm:"column:name;size:100;not null"`
	Description string `gorm:"column:description;size:255"`
	Active      bool   `gorm:"column:is_active;not null;default:true"`
}

// TableName provides the explicit table binding for GORM.
func (Place) TableName() string {
	return "reservation_places"
}

// Booking reserves one slot of one place for one date. The composite unique
// index guarantees a single winner when two requests race for the same slot.
type Booking struct {
	ID      uint         `gorm:"column:booking_id;primaryKey"`
	UserID  uint         `gorm:"column:user_id;not null;index:idx_bookings_user_date,priority:1"`
	User    users.User   `gorm:"foreignKey:UserID"`
	GroupID uint         `gorm:"column:group_id;not null"`
	Group   groups.Group `gorm:"foreignKey:GroupID"`
	PlaceID uint         `gorm:"column:place_id;not null;uniqueIndex:idx_bookings_slot,priority:1"`
	Place   Place        `gorm:"foreignKey:PlaceID"`
	Date    string       `gorm:"column:booking_date;size:10;not null;uniqueIndex:idx_bookings_slot,priority:2;index:idx_bookings_user_date,priority:2"`
	Time    string       `gorm:"column:booking_time;size:10;not null;uniqueIndex:idx_bookings_slot,priority:3"`
	Reason  string       `gorm:"column:reason;size:500;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Booking) TableName() string {
	return "bookings"
}

// Slot statuses for the per-place day board.
const (
	SlotAvailable     = "AVAILABLE"
	SlotBookedByMe    = "BOOKED_BY_ME"
	SlotBookedByOther = "BOOKED_BY_OTHER"
)

// PlaceResponse is the room list shape.
type PlaceResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SlotResponse is one line of a place's day board. Reservation details are
// only present when the slot is taken.
type SlotResponse struct {
	Time       string `json:"time"`
	Status     string `json:"status"`
	ReservedBy string `json:"reservedBy,omitempty"`
	GroupName  string `json:"groupName,omitempty"`
	ParishName string `json:"parishName,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// MyBookingResponse is one entry of the caller's reservation list.
type MyBookingResponse struct {
	ID        uint   `json:"id"`
	PlaceName string `json:"placeName"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Reason    string `json:"reason"`
}

func newMyBookingResponse(row Booking) MyBookingResponse {
	return MyBookingResponse{
		ID:        row.ID,
		PlaceName: row.Place.Name,
		Date:      row.Date,
		Time:      row.Time,
		Reason:    row.Reason,
	}
}
