package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/tennis-tournament/models"
	"github.com/Dosada05/tennis-tournament/repositories"
)

// PasswordHasher produces and checks one-way password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

type SignUpInput struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type UpdateCredentialsInput struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Email       string `json:"email"`
}

// UserInput is the administrative view of an account. Role and registration
// fields are taken as given.
type UserInput struct {
	Username                 string `json:"username"`
	Name                     string `json:"name"`
	Password                 string `json:"password"`
	Email                    string `json:"email"`
	Role                     string `json:"role"`
	IsRegisteredInTournament bool   `json:"is_registered_in_tournament"`
	RegistrationStatus       string `json:"registration_status"`
}

type UserService interface {
	SignUp(ctx context.Context, input SignUpInput) (*models.User, error)
	SignIn(ctx context.Context, username, password string) (*models.User, error)
	UpdateCredentials(ctx context.Context, id int, input UpdateCredentialsInput) (*models.User, error)

	AddUser(ctx context.Context, input UserInput) (*models.User, error)
	UpdateUser(ctx context.Context, id int, input UserInput) (*models.User, error)
	DeleteUser(ctx context.Context, id int) error

	GetUser(ctx context.Context, id int) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListUsersByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
	ListRegisteredPlayers(ctx context.Context, registered bool) ([]models.User, error)
	ListUsersByStatus(ctx context.Context, status models.RegistrationStatus) ([]models.User, error)
	FilterUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)

	RequestRegistration(ctx context.Context, id int) (*models.User, error)
	AcceptRegistration(ctx context.Context, id int) (*models.User, error)
	RejectRegistration(ctx context.Context, id int) (*models.User, error)
	QuitTournament(ctx context.Context, id int) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
	hasher   PasswordHasher
	notifier Notifier
	logger   *slog.Logger
}

func NewUserService(userRepo repositories.UserRepository, hasher PasswordHasher, notifier Notifier, logger *slog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		hasher:   hasher,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *userService) SignUp(ctx context.Context, input SignUpInput) (*models.User, error) {
	if err := ValidateCredentials(input.Username, input.Name, input.Password, input.Email); err != nil {
		return nil, err
	}

	role := models.RolePlayer
	if strings.TrimSpace(input.Role) != "" {
		parsed, err := models.ParseUserRole(input.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRole, input.Role)
		}
		if parsed == models.RoleAdmin {
			return nil, ErrSignUpRoleNotAllowed
		}
		role = parsed
	}

	if err := s.ensureUnique(ctx, input.Username, "", 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:                 input.Username,
		Name:                     input.Name,
		Email:                    input.Email,
		PasswordHash:             hash,
		Role:                     role,
		IsRegisteredInTournament: false,
		RegistrationStatus:       models.RegistrationNone,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}

	s.logger.InfoContext(ctx, "User signed up", slog.Int("user_id", user.ID), slog.String("role", string(user.Role)))
	return user, nil
}

func (s *userService) SignIn(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWrongPassword
	}
	return user, nil
}

func (s *userService) UpdateCredentials(ctx context.Context, id int, input UpdateCredentialsInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	if err := ValidateCredentials(input.Username, input.Name, input.NewPassword, input.Email); err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(input.OldPassword, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWrongPassword
	}

	if err := s.ensureUnique(ctx, input.Username, input.Name, id); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return nil, err
	}

	// email is validated but kept as stored
	user.Username = input.Username
	user.Name = input.Name
	user.PasswordHash = hash

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}
	return user, nil
}

func (s *userService) AddUser(ctx context.Context, input UserInput) (*models.User, error) {
	if err := ValidateCredentials(input.Username, input.Name, input.Password, input.Email); err != nil {
		return nil, err
	}
	role, status, err := parseAdminFields(input)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, input.Username, "", 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:                 input.Username,
		Name:                     input.Name,
		Email:                    input.Email,
		PasswordHash:             hash,
		Role:                     role,
		IsRegisteredInTournament: input.IsRegisteredInTournament,
		RegistrationStatus:       status,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}

	s.logger.InfoContext(ctx, "User added", slog.Int("user_id", user.ID), slog.String("role", string(user.Role)))
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, id int, input UserInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	if err := ValidateCredentials(input.Username, input.Name, input.Password, input.Email); err != nil {
		return nil, err
	}
	role, status, err := parseAdminFields(input)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, input.Username, input.Name, id); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user.Username = input.Username
	user.Name = input.Name
	user.PasswordHash = hash
	user.Email = input.Email
	user.Role = role
	user.IsRegisteredInTournament = input.IsRegisteredInTournament
	user.RegistrationStatus = status

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, id int) error {
	exists, err := s.userRepo.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check user %d: %w", id, err)
	}
	if !exists {
		return ErrUserNotFound
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return mapUserRepoError(err)
	}

	s.logger.InfoContext(ctx, "User deleted", slog.Int("user_id", id))
	return nil
}

func (s *userService) GetUser(ctx context.Context, id int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	return user, nil
}

func (s *userService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

func (s *userService) ListUsersByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	return s.userRepo.ListByRole(ctx, role)
}

func (s *userService) ListRegisteredPlayers(ctx context.Context, registered bool) ([]models.User, error) {
	return s.userRepo.ListByRegistered(ctx, registered)
}

func (s *userService) ListUsersByStatus(ctx context.Context, status models.RegistrationStatus) ([]models.User, error) {
	return s.userRepo.ListByStatus(ctx, status)
}

// FilterUsers narrows the players by name, then username, then competing flag.
func (s *userService) FilterUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	users, err := s.userRepo.ListByRole(ctx, models.RolePlayer)
	if err != nil {
		return nil, err
	}

	if filter.Name != nil && *filter.Name != "" {
		users = keepUsers(users, func(u models.User) bool { return containsFold(u.Name, *filter.Name) })
	}
	if filter.Username != nil && *filter.Username != "" {
		users = keepUsers(users, func(u models.User) bool { return containsFold(u.Username, *filter.Username) })
	}
	if filter.IsCompeting != nil {
		users = keepUsers(users, func(u models.User) bool { return u.IsRegisteredInTournament == *filter.IsCompeting })
	}
	return users, nil
}

func (s *userService) RequestRegistration(ctx context.Context, id int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	isPlayer := user.Role == models.RolePlayer
	if isPlayer {
		user.RegistrationStatus = models.RegistrationPending
		user.IsRegisteredInTournament = false
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}
	if !isPlayer {
		return user, nil
	}

	admins, err := s.userRepo.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list administrators: %w", err)
	}
	addresses := make([]string, 0, len(admins))
	for _, admin := range admins {
		addresses = append(addresses, admin.Email)
	}

	body := fmt.Sprintf("A new tournament registration request has been received from %s (%s).", user.Name, user.Username)
	if err := s.notifier.NotifyAdmins(ctx, "New Tournament Registration Request", body, addresses); err != nil {
		return nil, fmt.Errorf("notify administrators: %w", err)
	}

	s.logger.InfoContext(ctx, "Tournament registration requested", slog.Int("user_id", user.ID))
	return user, nil
}

func (s *userService) AcceptRegistration(ctx context.Context, id int) (*models.User, error) {
	body := "Dear %s,\n\nYour registration for the tournament has been accepted. Congratulations!"
	return s.decideRegistration(ctx, id, models.RegistrationAccepted, "Tournament Registration Accepted", body)
}

func (s *userService) RejectRegistration(ctx context.Context, id int) (*models.User, error) {
	body := "Dear %s,\n\nYour registration for the tournament has been rejected."
	return s.decideRegistration(ctx, id, models.RegistrationRejected, "Tournament Registration Rejected", body)
}

func (s *userService) decideRegistration(ctx context.Context, id int, status models.RegistrationStatus, subject, bodyFormat string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	user.RegistrationStatus = status
	user.IsRegisteredInTournament = status == models.RegistrationAccepted
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}

	if err := s.notifier.NotifyUser(ctx, user.Email, subject, fmt.Sprintf(bodyFormat, user.Name)); err != nil {
		return nil, fmt.Errorf("notify user %d: %w", user.ID, err)
	}

	s.logger.InfoContext(ctx, "Tournament registration decided",
		slog.Int("user_id", user.ID),
		slog.String("status", string(status)),
	)
	return user, nil
}

func (s *userService) QuitTournament(ctx context.Context, id int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	user.RegistrationStatus = models.RegistrationNone
	user.IsRegisteredInTournament = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}
	return user, nil
}

// ensureUnique fails if another record holds username or name. An empty name
// skips the name check; selfID 0 excludes nobody.
func (s *userService) ensureUnique(ctx context.Context, username, name string, selfID int) error {
	existing, err := s.userRepo.GetByUsername(ctx, username)
	switch {
	case err == nil && existing.ID != selfID:
		return ErrUsernameConflict
	case err != nil && !errors.Is(err, repositories.ErrUserNotFound):
		return fmt.Errorf("check username: %w", err)
	}

	if name == "" {
		return nil
	}
	existing, err = s.userRepo.GetByName(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return ErrNameConflict
	case err != nil && !errors.Is(err, repositories.ErrUserNotFound):
		return fmt.Errorf("check name: %w", err)
	}
	return nil
}

func parseAdminFields(input UserInput) (models.UserRole, models.RegistrationStatus, error) {
	role, err := models.ParseUserRole(input.Role)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRole, input.Role)
	}

	status := models.RegistrationNone
	if strings.TrimSpace(input.RegistrationStatus) != "" {
		status, err = models.ParseRegistrationStatus(input.RegistrationStatus)
		if err != nil {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidRegistrationStatus, input.RegistrationStatus)
		}
	}
	if !status.ConsistentWith(input.IsRegisteredInTournament) {
		return "", "", ErrInconsistentRegistration
	}
	return role, status, nil
}

// mapUserRepoError translates store errors into service errors.
func mapUserRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrUserUsernameConflict):
		return ErrUsernameConflict
	case errors.Is(err, repositories.ErrUserNameConflict):
		return ErrNameConflict
	case errors.Is(err, repositories.ErrUserInUse):
		return ErrUserInUse
	default:
		return err
	}
}

func keepUsers(users []models.User, keep func(models.User) bool) []models.User {
	kept := make([]models.User, 0, len(users))
	for _, u := range users {
		if keep(u) {
			kept = append(kept, u)
		}
	}
	return kept
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
