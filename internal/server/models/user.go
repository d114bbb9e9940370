// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. It is immutable once created.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	CreatedAt    time.Time
}
