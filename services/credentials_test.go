package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCredentials(t *testing.T) {
	tests := map[string]struct {
		username, name, password, email string
		wantErr                         bool
	}{
		"all present":      {"rafa", "Rafael", "pw", "r@x.org", false},
		"blank username":   {" ", "Rafael", "pw", "r@x.org", true},
		"empty name":       {"rafa", "", "pw", "r@x.org", true},
		"blank password":   {"rafa", "Rafael", "\t", "r@x.org", true},
		"whitespace email": {"rafa", "Rafael", "pw", "\n", true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := ValidateCredentials(tt.username, tt.name, tt.password, tt.email)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrMissingCredentials)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}
