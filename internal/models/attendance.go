package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendance is the fact that a user attended an event. At most one exists per (user, event).
// PointsEarned is what was credited at check-in; later event edits do not change it.
type Attendance struct {
	ID           uuid.UUID `json:"uuid"`
	UserID       uuid.UUID `json:"user"`
	EventID      uuid.UUID `json:"event"`
	AsStaff      bool      `json:"asStaff"`
	PointsEarned int       `json:"pointsEarned"`
	Timestamp    time.Time `json:"timestamp"`
}

// PublicAttendance is an attendance row joined with the side the caller did not already know.
type PublicAttendance struct {
	ID           uuid.UUID    `json:"uuid"`
	User         *UserPublic  `json:"user,omitempty"`
	Event        *PublicEvent `json:"event,omitempty"`
	AsStaff      bool         `json:"asStaff"`
	PointsEarned int          `json:"pointsEarned"`
	Timestamp    time.Time    `json:"timestamp"`
}
