package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is an organization event members attend for points.
type Event struct {
	ID               uuid.UUID `json:"uuid"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Committee        string    `json:"committee"`
	Location         string    `json:"location"`
	Cover            string    `json:"cover"`
	StartDate        time.Time `json:"start"`
	EndDate          time.Time `json:"end"`
	AttendanceCode   string    `json:"attendanceCode"`
	AttendancePoints int       `json:"pointValue"`
	StaffPoints      int       `json:"staffPointBonus"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// PublicEvent is the member-facing projection; the attendance code never leaves the server.
type PublicEvent struct {
	ID               uuid.UUID `json:"uuid"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Committee        string    `json:"committee"`
	Location         string    `json:"location"`
	Cover            string    `json:"cover"`
	StartDate        time.Time `json:"start"`
	EndDate          time.Time `json:"end"`
	AttendancePoints int       `json:"pointValue"`
}

// ToPublic converts Event to PublicEvent.
func (e *Event) ToPublic() PublicEvent {
	return PublicEvent{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		Committee:        e.Committee,
		Location:         e.Location,
		Cover:            e.Cover,
		StartDate:        e.StartDate,
		EndDate:          e.EndDate,
		AttendancePoints: e.AttendancePoints,
	}
}

// InWindow reports whether now lies within [StartDate, EndDate], both ends inclusive.
func (e *Event) InWindow(now time.Time) bool {
	return !now.Before(e.StartDate) && !now.After(e.EndDate)
}

// PointsFor returns the points awarded for attending, including the staff bonus when asStaff.
func (e *Event) PointsFor(asStaff bool) int {
	if asStaff {
		return e.AttendancePoints + e.StaffPoints
	}
	return e.AttendancePoints
}
