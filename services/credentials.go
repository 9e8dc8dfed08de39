package services

import "strings"

// ValidateCredentials rejects blank or whitespace-only account fields.
func ValidateCredentials(username, name, password, email string) error {
	for _, field := range []string{username, name, password, email} {
		if strings.TrimSpace(field) == "" {
			return ErrMissingCredentials
		}
	}
	return nil
}
