package services

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrConflict           = errors.New("resource already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidationFailed   = errors.New("validation failed")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
)

// Concrete errors. Each wraps exactly one kind.
var (
	ErrMissingCredentials = fmt.Errorf("%w: username, name, password and email are required", ErrInvalidCredentials)
	ErrWrongPassword      = fmt.Errorf("%w: password does not match", ErrInvalidCredentials)

	ErrUsernameConflict = fmt.Errorf("%w: username is already in use", ErrConflict)
	ErrNameConflict     = fmt.Errorf("%w: name is already in use", ErrConflict)

	ErrUserNotFound  = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrMatchNotFound = fmt.Errorf("%w: match not found", ErrNotFound)

	ErrInvalidRole               = fmt.Errorf("%w: unknown role", ErrValidationFailed)
	ErrInvalidRegistrationStatus = fmt.Errorf("%w: unknown registration status", ErrValidationFailed)
	ErrInconsistentRegistration  = fmt.Errorf("%w: registration status and flag disagree", ErrValidationFailed)
	ErrSignUpRoleNotAllowed      = fmt.Errorf("%w: sign-up is open to players and referees only", ErrValidationFailed)

	ErrMatchFieldsRequired  = fmt.Errorf("%w: match name, location and date are required", ErrValidationFailed)
	ErrNotAReferee          = fmt.Errorf("%w: user is not a referee", ErrValidationFailed)
	ErrNotAPlayer           = fmt.Errorf("%w: user is not a player", ErrValidationFailed)
	ErrPlayerNotAccepted    = fmt.Errorf("%w: player is not accepted into the tournament", ErrValidationFailed)
	ErrSamePlayerTwice      = fmt.Errorf("%w: a match needs two different players", ErrValidationFailed)
	ErrNegativeScore        = fmt.Errorf("%w: scores cannot be negative", ErrValidationFailed)
	ErrUnsupportedFormat    = fmt.Errorf("%w: unsupported export format", ErrValidationFailed)
	ErrMatchFull            = fmt.Errorf("%w: match already has two players", ErrConflict)
	ErrPlayerAlreadyInMatch = fmt.Errorf("%w: player is already registered to this match", ErrConflict)
	ErrUserInUse            = fmt.Errorf("%w: user is referenced by a match", ErrConflict)

	ErrArchiveDisabled = errors.New("export archive storage is not configured")
)
