package models

import "time"

// Supported UI languages.
const (
	LangEnglish = "en"
	LangArabic  = "ar"
)

type User struct {
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	Language  string    `json:"language"`
	Timezone  string    `json:"timezone"`
	IsActive  bool      `json:"is_active"`
	IsBanned  bool      `json:"is_banned"`
	CreatedAt time.Time `json:"created_at"`
}

// Location resolves the user's timezone for display, falling back to UTC.
func (u *User) Location() *time.Location {
	if u.Timezone != "" {
		if loc, err := time.LoadLocation(u.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}
