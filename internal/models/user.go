package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
	RoleStaff   UserRole = "STAFF"
)

// PersonType maps an account role onto the person collection holding its profile.
func (r UserRole) PersonType() (PersonType, bool) {
	switch r {
	case RoleStudent:
		return PersonStudent, true
	case RoleTeacher:
		return PersonTeacher, true
	case RoleStaff:
		return PersonStaff, true
	default:
		return "", false
	}
}

// User is an account stored in the users collection, keyed by uid.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	FullName     string     `json:"full_name"`
	Role         UserRole   `json:"role"`
	Active       bool       `json:"active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u User) EntityID() string { return u.ID }

// Info strips credentials for responses.
func (u User) Info() UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

// Session identifies the authenticated caller. It is passed explicitly to every service call.
type Session struct {
	UserID string
	Email  string
	Role   UserRole
	Name   string
}

// IsAdmin reports whether the caller has administrative rights.
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}
