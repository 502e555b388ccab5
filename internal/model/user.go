// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// Accounts are created either with email + password, or through GitHub
// OAuth. Both paths share the same internal string ID (xid), which is also
// the owner key under which that user's places are stored.
//
// PasswordHash is a bcrypt hash and is empty for GitHub-only accounts.
// GitHubID is 0 for password-only accounts.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	GitHubID     int64     `json:"githubId"  db:"github_id"`  // GitHub's numeric user ID, 0 if none
	Login        string    `json:"login"     db:"login"`      // GitHub username or email local part
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"` // Profile picture URL
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
