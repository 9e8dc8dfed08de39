package models

import (
	"fmt"
	"strings"
	"time"
)

type UserRole string

const (
	RolePlayer  UserRole = "player"
	RoleReferee UserRole = "referee"
	RoleAdmin   UserRole = "administrator"
)

// ParseUserRole converts a raw role string into a UserRole, ignoring case.
func ParseUserRole(s string) (UserRole, error) {
	switch role := UserRole(strings.ToLower(strings.TrimSpace(s))); role {
	case RolePlayer, RoleReferee, RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("unknown user role %q", s)
	}
}

// RegistrationStatus tracks a player's tournament registration request.
type RegistrationStatus string

const (
	RegistrationNone     RegistrationStatus = "NONE"
	RegistrationPending  RegistrationStatus = "PENDING"
	RegistrationAccepted RegistrationStatus = "ACCEPTED"
	RegistrationRejected RegistrationStatus = "REJECTED"
)

func ParseRegistrationStatus(s string) (RegistrationStatus, error) {
	switch status := RegistrationStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case RegistrationNone, RegistrationPending, RegistrationAccepted, RegistrationRejected:
		return status, nil
	default:
		return "", fmt.Errorf("unknown registration status %q", s)
	}
}

// ConsistentWith reports whether the registered flag matches the status.
// Only an accepted registration counts as being in the tournament.
func (s RegistrationStatus) ConsistentWith(registered bool) bool {
	return registered == (s == RegistrationAccepted)
}

type User struct {
	ID                       int                `json:"id"`
	Username                 string             `json:"username"`
	Name                     string             `json:"name"`
	Email                    string             `json:"email"`
	PasswordHash             string             `json:"-"`
	Role                     UserRole           `json:"role"`
	IsRegisteredInTournament bool               `json:"is_registered_in_tournament"`
	RegistrationStatus       RegistrationStatus `json:"registration_status"`
	CreatedAt                time.Time          `json:"created_at"`
}

// UserFilter narrows the player list. Nil and empty fields are ignored.
type UserFilter struct {
	Name        *string
	Username    *string
	IsCompeting *bool
}
