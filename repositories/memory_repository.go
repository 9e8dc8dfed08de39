package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tennis-tournament/models"
)

// MemoryStore keeps users and matches in process memory. It backs the
// "memory" store driver and the service tests.
type MemoryStore struct {
	mu sync.RWMutex

	users       map[int]models.User
	matches     map[int]models.Match
	nextUserID  int
	nextMatchID int
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int]models.User),
		matches: make(map[int]models.Match),
		now:     time.Now,
	}
}

// Users returns the store as a UserRepository.
func (s *MemoryStore) Users() UserRepository { return memoryUserRepository{s} }

// Matches returns the store as a MatchRepository.
func (s *MemoryStore) Matches() MatchRepository { return memoryMatchRepository{s} }

type memoryUserRepository struct{ s *MemoryStore }

func (r memoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.checkUniqueLocked(*user); err != nil {
		return err
	}
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	user.CreatedAt = r.s.now().UTC()
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (r memoryUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(func(u models.User) bool { return u.Username == username })
}

func (r memoryUserRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	return r.findOne(func(u models.User) bool { return u.Name == name })
}

func (r memoryUserRepository) List(ctx context.Context) ([]models.User, error) {
	return r.findAll(func(models.User) bool { return true }), nil
}

func (r memoryUserRepository) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	return r.findAll(func(u models.User) bool { return u.Role == role }), nil
}

func (r memoryUserRepository) ListByRegistered(ctx context.Context, registered bool) ([]models.User, error) {
	return r.findAll(func(u models.User) bool { return u.IsRegisteredInTournament == registered }), nil
}

func (r memoryUserRepository) ListByStatus(ctx context.Context, status models.RegistrationStatus) ([]models.User, error) {
	return r.findAll(func(u models.User) bool { return u.RegistrationStatus == status }), nil
}

func (r memoryUserRepository) Update(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if err := r.s.checkUniqueLocked(*user); err != nil {
		return err
	}
	user.CreatedAt = existing.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUserRepository) Exists(ctx context.Context, id int) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.users[id]
	return ok, nil
}

func (r memoryUserRepository) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return ErrUserNotFound
	}
	for _, m := range r.s.matches {
		if m.RefereeID == id {
			return ErrUserInUse
		}
	}

	// Same as ON DELETE SET NULL on the player columns.
	for matchID, m := range r.s.matches {
		if !m.HasPlayer(id) {
			continue
		}
		r.s.matches[matchID] = withoutPlayer(m, id)
	}
	delete(r.s.users, id)
	return nil
}

// withoutPlayer empties every slot of m held by playerID.
func withoutPlayer(m models.Match, playerID int) models.Match {
	if m.Player1ID != nil && *m.Player1ID == playerID {
		m.Player1ID = nil
	}
	if m.Player2ID != nil && *m.Player2ID == playerID {
		m.Player2ID = nil
	}
	return m
}

func (r memoryUserRepository) findOne(match func(models.User) bool) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			user := u
			return &user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r memoryUserRepository) findAll(match func(models.User) bool) []models.User {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		if match(u) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// checkUniqueLocked mirrors the unique constraints of the SQL schema.
func (s *MemoryStore) checkUniqueLocked(user models.User) error {
	for id, u := range s.users {
		if id == user.ID {
			continue
		}
		if u.Username == user.Username {
			return ErrUserUsernameConflict
		}
		if u.Name == user.Name {
			return ErrUserNameConflict
		}
	}
	return nil
}

type memoryMatchRepository struct{ s *MemoryStore }

func (r memoryMatchRepository) Create(ctx context.Context, match *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextMatchID++
	match.ID = r.s.nextMatchID
	match.CreatedAt = r.s.now().UTC()
	r.s.matches[match.ID] = cloneMatch(*match)
	return nil
}

func (r memoryMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	match, ok := r.s.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	m := cloneMatch(match)
	return &m, nil
}

func (r memoryMatchRepository) List(ctx context.Context) ([]models.Match, error) {
	return r.findAll(func(models.Match) bool { return true }), nil
}

func (r memoryMatchRepository) ListByReferee(ctx context.Context, refereeID int) ([]models.Match, error) {
	return r.findAll(func(m models.Match) bool { return m.RefereeID == refereeID }), nil
}

func (r memoryMatchRepository) Update(ctx context.Context, match *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.matches[match.ID]
	if !ok {
		return ErrMatchNotFound
	}
	match.CreatedAt = existing.CreatedAt
	r.s.matches[match.ID] = cloneMatch(*match)
	return nil
}

func (r memoryMatchRepository) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.matches[id]; !ok {
		return ErrMatchNotFound
	}
	delete(r.s.matches, id)
	return nil
}

func (r memoryMatchRepository) findAll(match func(models.Match) bool) []models.Match {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matches := make([]models.Match, 0, len(r.s.matches))
	for _, m := range r.s.matches {
		if match(m) {
			matches = append(matches, cloneMatch(m))
		}
	}
	sortMatches(matches)
	return matches
}

func sortMatches(matches []models.Match) {
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Date.Equal(matches[j].Date) {
			return matches[i].Date.Before(matches[j].Date)
		}
		return matches[i].ID < matches[j].ID
	})
}

// cloneMatch copies the player slot pointers so callers cannot mutate stored state.
func cloneMatch(m models.Match) models.Match {
	if m.Player1ID != nil {
		id := *m.Player1ID
		m.Player1ID = &id
	}
	if m.Player2ID != nil {
		id := *m.Player2ID
		m.Player2ID = &id
	}
	return m
}
