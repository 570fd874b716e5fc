package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityType tags an activity log entry.
type ActivityType string

const (
	ActivityAccountCreate     ActivityType = "ACCOUNT_CREATE"
	ActivityAccountActivate   ActivityType = "ACCOUNT_ACTIVATE"
	ActivityAccountLogin      ActivityType = "ACCOUNT_LOGIN"
	ActivityAccountUpdateInfo ActivityType = "ACCOUNT_UPDATE_INFO"
	ActivityAttendEvent       ActivityType = "ATTEND_EVENT"
	ActivityBonusPoints       ActivityType = "BONUS_POINTS"
	ActivityAccessChange      ActivityType = "ACCESS_LEVEL_CHANGE"
)

// Activity is an append-only audit entry for a user.
type Activity struct {
	ID           uuid.UUID    `json:"uuid"`
	UserID       uuid.UUID    `json:"user"`
	Type         ActivityType `json:"type"`
	Description  string       `json:"description,omitempty"`
	PointsEarned int          `json:"pointsEarned,omitempty"`
	Public       bool         `json:"-"`
	Timestamp    time.Time    `json:"timestamp"`
}
