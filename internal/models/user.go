package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccessType is the member's privilege level.
type AccessType string

const (
	AccessRestricted AccessType = "RESTRICTED"
	AccessStandard   AccessType = "STANDARD"
	AccessStaff      AccessType = "STAFF"
	AccessAdmin      AccessType = "ADMIN"
)

// Valid reports whether a is a known access type.
func (a AccessType) Valid() bool {
	switch a {
	case AccessRestricted, AccessStandard, AccessStaff, AccessAdmin:
		return true
	}
	return false
}

// UserState is the account lifecycle state.
type UserState string

const (
	StatePending UserState = "PENDING"
	StateActive  UserState = "ACTIVE"
	StateBlocked UserState = "BLOCKED"
)

// User represents a portal member.
type User struct {
	ID             uuid.UUID  `json:"uuid"`
	Email          string     `json:"email"`
	Password       string     `json:"-"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Picture        string     `json:"picture"`
	AccessType     AccessType `json:"accessType"`
	State          UserState  `json:"state"`
	AccessCode     string     `json:"-"`
	GraduationYear int        `json:"graduationYear"`
	Major          string     `json:"major"`
	Bio            string     `json:"bio"`
	Points         int        `json:"points"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// UserPublic is what other members may see.
type UserPublic struct {
	ID             uuid.UUID `json:"uuid"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Picture        string    `json:"picture"`
	GraduationYear int       `json:"graduationYear"`
	Major          string    `json:"major"`
	Bio            string    `json:"bio"`
	Points         int       `json:"points"`
}

// IsAdmin reports whether the user may use admin routes.
func (u *User) IsAdmin() bool { return u.AccessType == AccessAdmin }

// IsPending reports whether the user has not verified their email yet.
func (u *User) IsPending() bool { return u.State == StatePending }

// IsBlocked reports whether the account has been blocked by an admin.
func (u *User) IsBlocked() bool { return u.State == StateBlocked }

// FullName joins first and last name.
func (u *User) FullName() string { return u.FirstName + " " + u.LastName }

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Picture:        u.Picture,
		GraduationYear: u.GraduationYear,
		Major:          u.Major,
		Bio:            u.Bio,
		Points:         u.Points,
	}
}

// NormalizeEmails trims and lower-cases emails, dropping blanks and duplicates while keeping order.
func NormalizeEmails(emails []string) []string {
	out := make([]string, 0, len(emails))
	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
