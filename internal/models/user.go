package models

import (
	"time"
)

// User is the credential-bearing account consulted by the login flow.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Bio          string
	Hobbies      []string
	Role         string // "user" or "admin"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile holds the free-text fields a user may edit.
// Every field passes the text sanitizer before it is stored.
type Profile struct {
	FirstName string
	LastName  string
	Bio       string
	Hobbies   []string
}
