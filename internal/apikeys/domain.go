package apikeys

import "time"

// KeyStatus is the lifecycle state of an API key.
type KeyStatus string

const (
	KeyActive  KeyStatus = "ACTIVE"
	KeyRevoked KeyStatus = "REVOKED"
)

// Key is an issued API credential. Only the bcrypt hash of the secret is
// stored; the full token is shown once at issue or rotate time.
type Key struct {
	ID             string
	OrganizationID string
	Name           string
	Prefix         string
	SecretHash     string
	Version        int
	Status         KeyStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IssuedKey pairs the stored record with the one-time plaintext token.
type IssuedKey struct {
	Key   Key
	Token string
}
