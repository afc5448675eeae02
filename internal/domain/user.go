package domain

import "time"

// Account statuses. Only ActiveStatus may authenticate.
const (
	ActiveStatus    = "ACTIVE"
	SuspendedStatus = "SUSPENDED"
	PendingStatus   = "PENDING"
	DeletedStatus   = "DELETED"
)

// User represents an account that can authenticate against the platform.
// The wider ERP owns the rest of the account record; this service only
// mutates the credential hash and MFA material.
type User struct {
	ID               int64
	OrgID            int64
	Email            string
	PasswordHash     string
	Name             string
	Role             string
	Status           string
	MFAEnabled       bool
	MFASecret        string
	BackupCodeHashes []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CanAuthenticate reports whether the account is in a usable status.
func (u User) CanAuthenticate() bool {
	return u.Status == ActiveStatus
}
