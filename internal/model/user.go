package model

import "time"

// Role is a user's role in the academy.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleTeacher    Role = "teacher"
	RoleSecretary  Role = "secretary"
	RoleAdmin      Role = "admin"
	RoleOwner      Role = "owner"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleTeacher, RoleSecretary, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

// IsStaff is true for roles allowed to manage other users' lessons.
func (r Role) IsStaff() bool {
	return r == RoleSecretary || r == RoleAdmin || r == RoleOwner
}

type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Phone          string    `json:"phone,omitempty"`
	Role           Role      `json:"role"`
	HourBalance    int       `json:"hour_balance"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
